package ftsconverter

import "github.com/TurbulentGoat/fts-converter/core"

// Inner exposes the underlying core.Converter for advanced use (e.g., direct
// registry access in tests).  Prefer the high-level API for normal usage.
func (c *Converter) Inner() *core.Converter { return c.inner }
