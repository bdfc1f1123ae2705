package metadata

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// RepositoryExt is the file extension of repository files.
const RepositoryExt = ".toml"

type rawRepository struct {
	ID       string       `toml:"id"`
	Priority int          `toml:"priority"`
	Packages []rawPackage `toml:"package"`
}

type rawPackage struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Depends     []string `toml:"depends"`
	Conflicts   []string `toml:"conflicts"`
	Provides    []string `toml:"provides"`
	Size        int64    `toml:"size"`
	Description string   `toml:"description"`
}

// ReadRepository reads a repository in TOML form from r. If the document does
// not name the repository, defaultID is used.
func ReadRepository(r io.Reader, defaultID string) (Repository, error) {
	buf := &bytes.Buffer{}
	_, err := buf.ReadFrom(r)
	if err != nil {
		return Repository{}, errors.Wrap(err, "unable to read byte stream")
	}

	raw := rawRepository{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return Repository{}, errors.Wrap(err, "unable to parse the repository as TOML")
	}

	repo := Repository{
		ID:       raw.ID,
		Priority: raw.Priority,
	}
	if repo.ID == "" {
		repo.ID = defaultID
	}

	for _, rp := range raw.Packages {
		p, err := rp.toPackage(repo.ID)
		if err != nil {
			return Repository{}, errors.Wrapf(err, "repository %q", repo.ID)
		}
		repo.Packages = append(repo.Packages, p)
	}
	return repo, nil
}

func (rp rawPackage) toPackage(repo string) (Package, error) {
	if rp.Name == "" {
		return Package{}, errors.New("package entry without a name")
	}
	v, err := NewVersion(rp.Version)
	if err != nil {
		return Package{}, errors.Wrapf(err, "package %s", rp.Name)
	}
	if rp.Size < 0 {
		return Package{}, errors.Errorf("package %s: negative size", rp.Name)
	}

	p := Package{
		Name:        rp.Name,
		Version:     v,
		InstallSize: uint64(rp.Size),
		Repository:  repo,
		Description: rp.Description,
	}
	for _, s := range rp.Depends {
		d, err := ParseDependency(s)
		if err != nil {
			return Package{}, errors.Wrapf(err, "package %s", p.ID())
		}
		p.Depends = append(p.Depends, d)
	}
	for _, s := range rp.Conflicts {
		d, err := ParseDependency(s)
		if err != nil {
			return Package{}, errors.Wrapf(err, "package %s", p.ID())
		}
		p.Conflicts = append(p.Conflicts, d)
	}
	for _, s := range rp.Provides {
		pr, err := ParseProvide(s)
		if err != nil {
			return Package{}, errors.Wrapf(err, "package %s", p.ID())
		}
		p.Provides = append(p.Provides, pr)
	}
	return p, nil
}

func (r Repository) toRaw() rawRepository {
	raw := rawRepository{
		ID:       r.ID,
		Priority: r.Priority,
	}
	for _, p := range r.Packages {
		rp := rawPackage{
			Name:        p.Name,
			Version:     p.Version.String(),
			Size:        int64(p.InstallSize),
			Description: p.Description,
		}
		for _, d := range p.Depends {
			rp.Depends = append(rp.Depends, d.String())
		}
		for _, c := range p.Conflicts {
			rp.Conflicts = append(rp.Conflicts, c.String())
		}
		for _, pr := range p.Provides {
			rp.Provides = append(rp.Provides, pr.String())
		}
		raw.Packages = append(raw.Packages, rp)
	}
	return raw
}

// MarshalTOML serializes the repository into TOML via an intermediate raw
// form.
func (r Repository) MarshalTOML() ([]byte, error) {
	result, err := toml.Marshal(r.toRaw())
	return result, errors.Wrap(err, "unable to marshal repository to TOML")
}

// LoadRepositoryFile reads a single repository file. The file name, without
// extension, is the default repository id.
func LoadRepositoryFile(path string) (Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return Repository{}, errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	repo, err := ReadRepository(f, strings.TrimSuffix(filepath.Base(path), RepositoryExt))
	return repo, errors.Wrapf(err, "loading %s", path)
}

// LoadRepositoryDir reads every repository file under dir, in parallel. The
// result is sorted by repository id, so the order files are found in never
// matters.
func LoadRepositoryDir(ctx context.Context, dir string) ([]Repository, error) {
	var paths []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsRegular() && strings.HasSuffix(osPathname, RepositoryExt) {
				paths = append(paths, osPathname)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to walk repository directory %s", dir)
	}

	repos := make([]Repository, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			repo, err := LoadRepositoryFile(path)
			if err != nil {
				return err
			}
			repos[i] = repo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(repos, func(i, j int) bool {
		return repos[i].ID < repos[j].ID
	})
	return repos, nil
}
