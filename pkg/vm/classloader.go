package vm

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daimatz/gojni/pkg/classfile"
)

// ErrClassNotFound is returned by loaders that do not have a class.
var ErrClassNotFound = errors.New("class not found")

// ClassLoader loads .class files by class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// classCache memoizes parsed class files for a loader.
type classCache struct {
	mu    sync.Mutex
	files map[string]*classfile.ClassFile
}

func (c *classCache) get(name string) (*classfile.ClassFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cf, ok := c.files[name]
	return cf, ok
}

func (c *classCache) put(name string, cf *classfile.ClassFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.files == nil {
		c.files = make(map[string]*classfile.ClassFile)
	}
	c.files[name] = cf
}

// DirClassLoader loads classes from a directory tree laid out by package.
type DirClassLoader struct {
	Dir   string
	cache classCache
}

// NewDirClassLoader creates a loader rooted at dir.
func NewDirClassLoader(dir string) *DirClassLoader {
	return &DirClassLoader{Dir: dir}
}

func (cl *DirClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := cl.cache.get(name); ok {
		return cf, nil
	}
	path := filepath.Join(cl.Dir, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dir %s: %s: %w", cl.Dir, name, ErrClassNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("dir %s: parsing %s: %w", cl.Dir, name, err)
	}
	cl.cache.put(name, cf)
	return cf, nil
}

// jmodMagic prefixes the zip payload of a JDK jmod file.
var jmodMagic = []byte("JM\x01\x00")

// ZipClassLoader loads classes from a jar, or from a jmod whose entries live
// under classes/.
type ZipClassLoader struct {
	Path string

	once    sync.Once
	openErr error
	entries map[string]*zip.File
	cache   classCache
}

// NewZipClassLoader creates a loader for the archive at path. The archive is
// opened on first use.
func NewZipClassLoader(path string) *ZipClassLoader {
	return &ZipClassLoader{Path: path}
}

func (cl *ZipClassLoader) open() error {
	cl.once.Do(func() {
		data, err := os.ReadFile(cl.Path)
		if err != nil {
			cl.openErr = fmt.Errorf("zip: reading %s: %w", cl.Path, err)
			return
		}
		prefix := ""
		if bytes.HasPrefix(data, jmodMagic) {
			data = data[len(jmodMagic):]
			prefix = "classes/"
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			cl.openErr = fmt.Errorf("zip: opening %s: %w", cl.Path, err)
			return
		}
		cl.entries = make(map[string]*zip.File, len(zr.File))
		for _, f := range zr.File {
			name, ok := strings.CutPrefix(f.Name, prefix)
			if !ok || !strings.HasSuffix(name, ".class") {
				continue
			}
			cl.entries[strings.TrimSuffix(name, ".class")] = f
		}
	})
	return cl.openErr
}

func (cl *ZipClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := cl.cache.get(name); ok {
		return cf, nil
	}
	if err := cl.open(); err != nil {
		return nil, err
	}
	f, ok := cl.entries[name]
	if !ok {
		return nil, fmt.Errorf("zip %s: %s: %w", cl.Path, name, ErrClassNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("zip: opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	cf, err := classfile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("zip: parsing %s: %w", name, err)
	}
	cl.cache.put(name, cf)
	return cf, nil
}

// ClassPathLoader searches a list of loaders in order.
type ClassPathLoader struct {
	Loaders []ClassLoader
}

// NewClassPathLoader builds a loader from a path list such as
// "classes:lib/app.jar". Archives are recognized by their .jar, .zip or
// .jmod extension; every other entry is a directory.
func NewClassPathLoader(classPath string) (*ClassPathLoader, error) {
	cpl := &ClassPathLoader{}
	for _, entry := range filepath.SplitList(classPath) {
		if entry == "" {
			continue
		}
		info, err := os.Stat(entry)
		if err != nil {
			return nil, fmt.Errorf("class path entry %s: %w", entry, err)
		}
		switch strings.ToLower(filepath.Ext(entry)) {
		case ".jar", ".zip", ".jmod":
			cpl.Loaders = append(cpl.Loaders, NewZipClassLoader(entry))
		default:
			if !info.IsDir() {
				return nil, fmt.Errorf("class path entry %s: not a directory or archive", entry)
			}
			cpl.Loaders = append(cpl.Loaders, NewDirClassLoader(entry))
		}
	}
	return cpl, nil
}

func (cl *ClassPathLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	for _, l := range cl.Loaders {
		cf, err := l.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
}
