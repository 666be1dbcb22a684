package appstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
)

const (
	extWasm     = ".wasm"
	extBrotli   = ".br"
	extDisabled = ".disabled"
)

var zeroVersion = semver.MustParse("0.0.0")

// App describes the version of an app the store serves.
type App struct {
	Owner    string
	Name     string
	Version  *semver.Version
	Encoding string
	Disabled bool
	Path     string

	modTime time.Time
	size    int64
}

func (a App) changed(b App) bool {
	return a.Path != b.Path || !a.modTime.Equal(b.modTime) || a.size != b.size
}

type appKey struct {
	owner, name string
}

// Store serves app code from a directory laid out as
//
//	<root>/<owner>/<app>.wasm
//	<root>/<owner>/<app>@<semver>.wasm[.br]
//	<root>/<owner>/<app>.disabled
//
// The highest version of an app wins; an unversioned file counts as 0.0.0.
// A .disabled marker hides the app.
type Store struct {
	root string

	mu   sync.RWMutex
	apps map[appKey]App
}

// Open indexes root.
func Open(root string) (*Store, error) {
	s := &Store{root: filepath.Clean(root)}
	if _, err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the directory the store serves.
func (s *Store) Root() string { return s.root }

// Lookup answers an app store request.
func (s *Store) Lookup(owner, name string) (message.AppReply, error) {
	s.mu.RLock()
	app, ok := s.apps[appKey{owner, name}]
	s.mu.RUnlock()
	if !ok || app.Disabled {
		return message.NoSuchApp(), nil
	}

	code, err := os.ReadFile(app.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// removed since the last scan
			return message.NoSuchApp(), nil
		}
		return message.AppReply{}, errors.Load("read "+app.Path, err)
	}
	return message.FoundCode(code, app.Encoding, app.Version.String()), nil
}

// Resolve returns decoded module bytes, so a Store can back a pool directly.
func (s *Store) Resolve(_ context.Context, owner, name string) ([]byte, error) {
	rep, err := s.Lookup(owner, name)
	if err != nil {
		return nil, err
	}
	if !rep.Found {
		return nil, errors.AppNotFound(owner, name)
	}
	return Decode(rep.Code, rep.Encoding)
}

// Handle serves one AppRequest over the transport.
func (s *Store) Handle(_ context.Context, req message.AppRequest) message.AppReply {
	rep, err := s.Lookup(req.Owner, req.AppName)
	if err != nil {
		Logger().Error("lookup failed",
			zap.String("owner", req.Owner),
			zap.String("app", req.AppName),
			zap.Error(err))
		return message.AppReply{Err: err.Error()}
	}
	Logger().Debug("lookup",
		zap.String("owner", req.Owner),
		zap.String("app", req.AppName),
		zap.Bool("found", rep.Found),
		zap.String("version", rep.Version))
	return rep
}

// Apps lists the apps of owner, disabled ones included, sorted by name.
func (s *Store) Apps(owner string) []App {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []App
	for k, a := range s.apps {
		if k.owner == owner {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rescan rebuilds the index from disk and returns events for apps that
// changed or went away since the previous scan. New apps produce no event;
// nothing can be running them yet.
func (s *Store) Rescan() ([]message.AppEvent, error) {
	next, err := scan(s.root)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.apps
	s.apps = next
	s.mu.Unlock()

	var events []message.AppEvent
	for k, old := range prev {
		if old.Disabled {
			continue
		}
		cur, ok := next[k]
		switch {
		case !ok || cur.Disabled:
			events = append(events, message.AppEvent{Kind: message.AppRemove, Owner: k.owner, AppName: k.name})
		case old.changed(cur):
			events = append(events, message.AppEvent{Kind: message.AppUpdate, Owner: k.owner, AppName: k.name})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Owner != events[j].Owner {
			return events[i].Owner < events[j].Owner
		}
		return events[i].AppName < events[j].AppName
	})
	return events, nil
}

func scan(root string) (map[appKey]App, error) {
	owners, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Load("read app store root", err)
	}

	apps := make(map[appKey]App)
	disabled := make(map[appKey]bool)
	for _, o := range owners {
		if !o.IsDir() || strings.HasPrefix(o.Name(), ".") {
			continue
		}
		owner := o.Name()
		dir := filepath.Join(root, owner)
		files, err := os.ReadDir(dir)
		if err != nil {
			Logger().Warn("skipping owner directory", zap.String("dir", dir), zap.Error(err))
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if name, ok := strings.CutSuffix(f.Name(), extDisabled); ok {
				disabled[appKey{owner, name}] = true
				continue
			}
			name, version, encoding, ok := parseFileName(f.Name())
			if !ok {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}

			cand := App{
				Owner:    owner,
				Name:     name,
				Version:  version,
				Encoding: encoding,
				Path:     filepath.Join(dir, f.Name()),
				modTime:  info.ModTime(),
				size:     info.Size(),
			}
			k := appKey{owner, name}
			if cur, ok := apps[k]; !ok || better(cand, cur) {
				apps[k] = cand
			}
		}
	}

	for k := range disabled {
		if a, ok := apps[k]; ok {
			a.Disabled = true
			apps[k] = a
		}
	}
	return apps, nil
}

// better prefers the higher version, then the uncompressed file.
func better(a, b App) bool {
	if c := a.Version.Compare(b.Version); c != 0 {
		return c > 0
	}
	return a.Encoding == "" && b.Encoding != ""
}

// parseFileName splits "<app>[@<semver>].wasm[.br]".
func parseFileName(file string) (name string, version *semver.Version, encoding string, ok bool) {
	base := file
	if b, found := strings.CutSuffix(base, extBrotli); found {
		base, encoding = b, message.EncodingBrotli
	}
	base, found := strings.CutSuffix(base, extWasm)
	if !found || base == "" {
		return "", nil, "", false
	}

	name, ver, versioned := strings.Cut(base, "@")
	if name == "" {
		return "", nil, "", false
	}
	if !versioned {
		return name, zeroVersion, encoding, true
	}
	v, err := semver.StrictNewVersion(ver)
	if err != nil {
		Logger().Warn("ignoring file with bad version", zap.String("file", file), zap.Error(err))
		return "", nil, "", false
	}
	return name, v, encoding, true
}
