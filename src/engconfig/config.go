/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package engconfig loads the JIT engine's tunable limits from TOML.
package engconfig

import (
	"io"

	"github.com/pelletier/go-toml/v2"

	"github.com/jacobin-vm/classjit/src/clserr"
)

// BackendKind selects which code generator the engine compiles methods with.
type BackendKind string

const (
	BackendLLVMIR  BackendKind = "llvmir"
	BackendStackVM BackendKind = "stackvm"
)

// Config bounds the size of a class file Load accepts and the number of
// basic blocks in a method the engine compiles, and picks the code
// generator new modules are built against.
type Config struct {
	MaxClassFileBytes       int         `toml:"max_class_file_bytes"`
	MaxBasicBlocksPerMethod int         `toml:"max_basic_blocks_per_method"`
	Backend                 BackendKind `toml:"backend"`
}

// Default returns permissive limits suitable for development and tests:
// generous size ceilings and the in-process stackvm backend.
func Default() Config {
	return Config{
		MaxClassFileBytes:       16 << 20,
		MaxBasicBlocksPerMethod: 4096,
		Backend:                 BackendStackVM,
	}
}

// Load decodes a TOML document into a Config, starting from Default so
// that an omitted field keeps its permissive value rather than zeroing
// out.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, clserr.WhileParsing("engine config", err)
	}
	if cfg.Backend != BackendLLVMIR && cfg.Backend != BackendStackVM {
		return Config{}, clserr.NewInvalidConfig("unknown backend: " + string(cfg.Backend))
	}
	return cfg, nil
}
