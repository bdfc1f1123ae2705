package installdb

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/xpackagemanager/xpm/metadata"
)

// encodePackage returns the stored form of an installed package record.
func encodePackage(ip metadata.InstalledPackage) ([]byte, error) {
	if ip.Name == "" || ip.Version.IsZero() {
		return nil, errors.New("refusing to store a package without name or version")
	}
	b, err := json.Marshal(ip)
	return b, errors.Wrapf(err, "failed to encode %s", ip.ID())
}

// decodePackage decodes a stored installed package record.
func decodePackage(b []byte) (metadata.InstalledPackage, error) {
	var ip metadata.InstalledPackage
	if err := json.Unmarshal(b, &ip); err != nil {
		return ip, err
	}
	if ip.Name == "" || ip.Version.IsZero() {
		return ip, errors.New("stored package lacks name or version")
	}
	return ip, nil
}

func encodeEntry(e Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errors.Wrap(err, "failed to encode journal entry")
}

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(b, &e)
	return e, err
}
