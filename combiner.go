package zipmerge

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipmerge/internal/manifest"
	"github.com/meigma/zipmerge/internal/zipio"
)

// LooseFile pairs a filesystem path with the entry name it occupies in
// the output. An empty Name uses the file's base name.
type LooseFile struct {
	Path string
	Name string
}

// Combiner merges an ordered list of archives and loose files into one
// output archive. A Combiner serves exactly one Combine call; all mutable
// state lives on the instance, so a long-lived process handling many
// requests constructs a fresh Combiner per request.
type Combiner struct {
	filter         Filter
	compression    Compression
	normalize      bool
	jar            bool
	manifestLines  []string
	strictManifest bool

	used   bool
	reg    *registry
	merged map[string]*mergedEntry
	order  []string // merged names in first-acceptance order
}

// New creates a Combiner. The default configuration uses CopyPolicy and
// pass-through compression.
func New(opts ...Option) *Combiner {
	c := &Combiner{
		filter: CopyPolicy(),
		reg:    newRegistry(),
		merged: make(map[string]*mergedEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Combine streams archives in order, then loose files, through the
// configured filter into a new archive at out. The output is written to a
// temporary file beside out and renamed into place only on full success;
// on any failure the temporary file is removed and out is left untouched.
func (c *Combiner) Combine(ctx context.Context, out string, archives []string, loose []LooseFile) (err error) {
	if c.used {
		return ErrCombinerReused
	}
	c.used = true

	tmp, err := os.CreateTemp(filepath.Dir(out), ".zipmerge-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zipio.NewWriter(tmp)

	if c.jar {
		if err = c.writeManifest(ctx, zw, archives); err != nil {
			return err
		}
	}
	if err = c.processArchives(ctx, zw, archives); err != nil {
		return err
	}
	if err = c.processLoose(ctx, zw, loose); err != nil {
		return err
	}
	if err = c.flushMerged(zw); err != nil {
		return err
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", out, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", out, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	if err = os.Rename(tmpPath, out); err != nil {
		return fmt.Errorf("publish %s: %w", out, err)
	}
	return nil
}

// processArchives walks the inputs in caller order. The next archive's
// directory is opened concurrently with writing the current one; decisions
// and writes stay strictly sequential.
func (c *Combiner) processArchives(ctx context.Context, zw *zip.Writer, archives []string) error {
	g, gctx := errgroup.WithContext(ctx)
	opened := make(chan openArchive, 1)

	g.Go(func() error {
		defer close(opened)
		for _, path := range archives {
			rc, err := zipio.OpenReader(path)
			if err != nil {
				return &MalformedArchiveError{Source: path, Err: err}
			}
			select {
			case opened <- openArchive{path: path, rc: rc}:
			case <-gctx.Done():
				rc.Close()
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for in := range opened {
			err := c.processArchive(gctx, zw, in)
			in.rc.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	for in := range opened {
		in.rc.Close()
	}
	return err
}

type openArchive struct {
	path string
	rc   *zip.ReadCloser
}

func (c *Combiner) processArchive(ctx context.Context, zw *zip.Writer, in openArchive) error {
	for _, f := range in.rc.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := Entry{
			Name:             f.Name,
			Source:           in.path,
			Method:           f.Method,
			CRC32:            f.CRC32,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
			ExternalAttrs:    f.ExternalAttrs,
			Modified:         f.Modified,
		}
		d := c.filter.Decide(&entry, c.reg)
		switch d.Action {
		case ActionSkip:
		case ActionCopy:
			if err := c.copyEntry(zw, in, f, f.Name); err != nil {
				return err
			}
		case ActionRename:
			if err := c.copyEntry(zw, in, f, d.Name); err != nil {
				return err
			}
		case ActionConcatenate:
			if err := c.holdEntry(in, f, false); err != nil {
				return err
			}
		case ActionReplace:
			if err := c.holdEntry(in, f, true); err != nil {
				return err
			}
		case ActionReject:
			return c.rejectError(&entry, d)
		default:
			return fmt.Errorf("filter returned unknown action %d for %q", d.Action, f.Name)
		}
	}
	return nil
}

// copyEntry writes one archive entry to the output under name. When the
// entry's recorded method already matches the output mode, the compressed
// bytes are copied raw, preserving the recorded CRC; otherwise the entry
// is decompressed (verifying its CRC) and recompressed.
func (c *Combiner) copyEntry(zw *zip.Writer, in openArchive, f *zip.File, name string) error {
	if c.reg.Has(name) {
		return &DuplicateEntryError{Name: name, First: c.reg.source(name), Second: in.path}
	}

	isDir := len(f.Name) > 0 && f.Name[len(f.Name)-1] == '/'
	method := c.targetMethod(f.Method, isDir)
	h := zipio.CloneHeader(&f.FileHeader, name, c.normalize)

	if method == f.Method {
		w, err := zw.CreateRaw(&h)
		if err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
		r, err := f.OpenRaw()
		if err != nil {
			return &MalformedArchiveError{Source: in.path, Err: err}
		}
		if _, err := io.Copy(w, r); err != nil {
			return classifyCopyErr(in.path, name, err)
		}
	} else {
		h.Method = method
		h.CRC32, h.CompressedSize64, h.UncompressedSize64 = 0, 0, 0
		w, err := zw.CreateHeader(&h)
		if err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
		r, err := f.Open()
		if err != nil {
			return &MalformedArchiveError{Source: in.path, Err: err}
		}
		_, copyErr := io.Copy(w, r)
		closeErr := r.Close()
		if copyErr != nil {
			return classifyCopyErr(in.path, name, copyErr)
		}
		if closeErr != nil {
			return &MalformedArchiveError{Source: in.path, Err: closeErr}
		}
	}

	c.reg.add(name, in.path)
	return nil
}

// holdEntry buffers an entry's decompressed bytes for merge at finalize.
func (c *Combiner) holdEntry(in openArchive, f *zip.File, replace bool) error {
	r, err := f.Open()
	if err != nil {
		return &MalformedArchiveError{Source: in.path, Err: err}
	}
	data, err := io.ReadAll(r)
	closeErr := r.Close()
	if err != nil {
		return &MalformedArchiveError{Source: in.path, Err: err}
	}
	if closeErr != nil {
		return &MalformedArchiveError{Source: in.path, Err: closeErr}
	}
	c.hold(f.Name, in.path, data, replace)
	return nil
}

func (c *Combiner) hold(name, source string, data []byte, replace bool) {
	m, ok := c.merged[name]
	if !ok {
		m = &mergedEntry{}
		c.merged[name] = m
		c.order = append(c.order, name)
		c.reg.add(name, source)
	}
	if replace {
		m.data = m.data[:0]
	}
	m.data = append(m.data, data...)
}

func (c *Combiner) processLoose(ctx context.Context, zw *zip.Writer, loose []LooseFile) error {
	for _, lf := range loose {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := lf.Name
		if name == "" {
			name = filepath.Base(lf.Path)
		}
		name = zipio.SanitizeName(name)

		info, err := os.Stat(lf.Path)
		if err != nil {
			return fmt.Errorf("stat loose file: %w", err)
		}
		data, err := os.ReadFile(lf.Path)
		if err != nil {
			return fmt.Errorf("read loose file: %w", err)
		}

		entry := Entry{
			Name:             name,
			Source:           lf.Path,
			Method:           zip.Store,
			UncompressedSize: uint64(len(data)),
			Modified:         info.ModTime(),
		}
		d := c.filter.Decide(&entry, c.reg)
		switch d.Action {
		case ActionSkip:
		case ActionCopy, ActionRename:
			if d.Action == ActionRename {
				name = d.Name
			}
			if c.reg.Has(name) {
				return &DuplicateEntryError{Name: name, First: c.reg.source(name), Second: lf.Path}
			}
			h := zipio.NewHeader(name, c.newEntryMethod(), info.ModTime(), c.normalize)
			w, err := zw.CreateHeader(&h)
			if err != nil {
				return fmt.Errorf("write %q: %w", name, err)
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write %q: %w", name, err)
			}
			c.reg.add(name, lf.Path)
		case ActionConcatenate:
			c.hold(name, lf.Path, data, false)
		case ActionReplace:
			c.hold(name, lf.Path, data, true)
		case ActionReject:
			return c.rejectError(&entry, d)
		default:
			return fmt.Errorf("filter returned unknown action %d for %q", d.Action, name)
		}
	}
	return nil
}

// flushMerged writes buffered merge entries in first-acceptance order.
func (c *Combiner) flushMerged(zw *zip.Writer) error {
	for _, name := range c.order {
		h := zipio.NewHeader(name, c.newEntryMethod(), time.Time{}, c.normalize)
		w, err := zw.CreateHeader(&h)
		if err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
		if _, err := w.Write(c.merged[name].data); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
	}
	return nil
}

// writeManifest merges input manifests with caller-supplied attributes and
// writes META-INF/ and the manifest ahead of every other entry.
func (c *Combiner) writeManifest(ctx context.Context, zw *zip.Writer, archives []string) error {
	discovered := manifest.New()
	for _, path := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := readArchiveManifest(path)
		if err != nil {
			return err
		}
		if in == nil {
			continue
		}
		if err := discovered.Merge(in, c.strictManifest); err != nil {
			var conflict *manifest.ConflictError
			if errors.As(err, &conflict) {
				return &ManifestConflictError{
					Attribute: conflict.Name,
					First:     conflict.Have,
					Second:    conflict.Want,
				}
			}
			return err
		}
	}

	man := manifest.New()
	for _, line := range c.manifestLines {
		name, value, err := manifest.ParseAttribute(line)
		if err != nil {
			return err
		}
		man.Set(name, value)
	}
	// Caller attributes are already present, so they win.
	if err := man.Merge(discovered, false); err != nil {
		return err
	}

	dirHeader := zipio.NewHeader(metaInfDir, zip.Store, time.Time{}, c.normalize)
	dirHeader.SetMode(0o755 | os.ModeDir)
	if _, err := zw.CreateHeader(&dirHeader); err != nil {
		return fmt.Errorf("write %q: %w", metaInfDir, err)
	}
	c.reg.add(metaInfDir, "merged manifest")

	h := zipio.NewHeader(ManifestName, c.newEntryMethod(), time.Time{}, c.normalize)
	w, err := zw.CreateHeader(&h)
	if err != nil {
		return fmt.Errorf("write %q: %w", ManifestName, err)
	}
	if _, err := man.WriteTo(w); err != nil {
		return fmt.Errorf("write %q: %w", ManifestName, err)
	}
	c.reg.add(ManifestName, "merged manifest")
	return nil
}

// readArchiveManifest returns the archive's manifest, or nil when the
// archive has none.
func readArchiveManifest(path string) (*manifest.Manifest, error) {
	rc, err := zipio.OpenReader(path)
	if err != nil {
		return nil, &MalformedArchiveError{Source: path, Err: err}
	}
	defer rc.Close()

	for _, f := range rc.File {
		if f.Name != ManifestName {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, &MalformedArchiveError{Source: path, Err: err}
		}
		m, parseErr := manifest.Parse(r)
		closeErr := r.Close()
		if parseErr != nil {
			return nil, &MalformedArchiveError{Source: path, Err: parseErr}
		}
		if closeErr != nil {
			return nil, &MalformedArchiveError{Source: path, Err: closeErr}
		}
		return m, nil
	}
	return nil, nil
}

func (c *Combiner) rejectError(e *Entry, d Decision) error {
	if first := c.reg.source(e.Name); first != "" {
		return &DuplicateEntryError{Name: e.Name, First: first, Second: e.Source}
	}
	return fmt.Errorf("entry %q from %s rejected: %s", e.Name, e.Source, d.Reason)
}

// targetMethod returns the method an existing entry keeps in the output.
// Directory entries keep their recorded method. Deflate mode only forces
// recompression of entries not already deflated, so deflated frames still
// copy raw.
func (c *Combiner) targetMethod(method uint16, isDir bool) uint16 {
	if isDir {
		return method
	}
	switch c.compression {
	case CompressionDeflate:
		if method == zip.Store {
			return zip.Deflate
		}
		return method
	case CompressionStore:
		return zip.Store
	default:
		return method
	}
}

// newEntryMethod returns the method for entries whose bytes originate in
// this combine (loose files, merged entries, the manifest).
func (c *Combiner) newEntryMethod() uint16 {
	if c.compression == CompressionStore {
		return zip.Store
	}
	return zip.Deflate
}

// classifyCopyErr distinguishes corrupt-input failures, which indict the
// source archive, from output write failures.
func classifyCopyErr(source, name string, err error) error {
	if zipio.IsCorrupt(err) {
		return &MalformedArchiveError{Source: source, Err: err}
	}
	return fmt.Errorf("copy %q from %s: %w", name, source, err)
}

// registry is the ordered set of names committed to the output, with the
// source that first contributed each name. It is owned by one Combiner.
type registry struct {
	order   []string
	sources map[string]string
}

func newRegistry() *registry {
	return &registry{sources: make(map[string]string)}
}

func (r *registry) Has(name string) bool {
	_, ok := r.sources[name]
	return ok
}

func (r *registry) add(name, source string) {
	if r.Has(name) {
		return
	}
	r.order = append(r.order, name)
	r.sources[name] = source
}

func (r *registry) source(name string) string { return r.sources[name] }

type mergedEntry struct {
	data []byte
}
