package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/evscript/internal/ir"
)

// Script file extensions understood by LoadFile and LoadPaths.
const (
	ExtCUE  = ".cue"
	ExtYAML = ".yaml"
	ExtYML  = ".yml"
	ExtJSON = ".json"
)

// IsScriptFile reports whether path has a script file extension.
func IsScriptFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCUE, ExtYAML, ExtYML, ExtJSON:
		return true
	}
	return false
}

// LoadFile reads one script file. CUE files are compiled on their own;
// YAML and JSON files go through ir.DecodeScripts.
func LoadFile(path string) (*ir.ScriptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCUE:
		return CompileFile(path, data)
	case ExtYAML, ExtYML, ExtJSON:
		set, err := ir.DecodeScripts(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return set, nil
	default:
		return nil, fmt.Errorf("%s: unsupported script file extension", path)
	}
}

// LoadDir loads every script under dir. The CUE files of each directory are
// built together as one package instance, so scripts may share definitions
// across files. YAML and JSON files are decoded one by one.
func LoadDir(dir string) (*ir.ScriptSet, int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("script directory: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("not a directory: %s", dir)
	}

	cueDirs := make(map[string]bool)
	var plain []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsScriptFile(path) {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ExtCUE {
			cueDirs[filepath.Dir(path)] = true
		} else {
			plain = append(plain, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan script directory: %w", err)
	}

	dirs := make([]string, 0, len(cueDirs))
	for d := range cueDirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	sort.Strings(plain)

	set := ir.NewScriptSet()
	for _, d := range dirs {
		part, err := loadCUEDir(d)
		if err != nil {
			return nil, 0, err
		}
		if err := set.Merge(part); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", d, err)
		}
	}
	for _, path := range plain {
		part, err := LoadFile(path)
		if err != nil {
			return nil, 0, err
		}
		if err := set.Merge(part); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}
	}
	return set, len(dirs) + len(plain), nil
}

func loadCUEDir(dir string) (*ir.ScriptSet, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	return CompileScripts(v)
}

// LoadPaths loads and merges scripts from files and directories, in order.
// Duplicate script IDs across paths are an error.
func LoadPaths(paths ...string) (*ir.ScriptSet, error) {
	set := ir.NewScriptSet()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("script path: %w", err)
		}
		var part *ir.ScriptSet
		if info.IsDir() {
			part, _, err = LoadDir(p)
		} else {
			part, err = LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		if err := set.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return set, nil
}
