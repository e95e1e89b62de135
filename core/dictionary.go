package core

import (
	"bytes"
	"encoding/json"
	"sync"

	"i2cctl/protocol"
	"i2cctl/tinycompress"
)

// Dictionary builds the data dictionary the host fetches with identify.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]any
	enumerations  map[string]map[string]int
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte // zlib-wrapped JSON
}

// NewDictionary returns a dictionary over cmdReg.
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]any),
		enumerations:  make(map[string]map[string]int),
		commandReg:    cmdReg,
		version:       protocol.Version,
		buildVersions: "go",
	}
}

// AddConstant exposes a firmware constant to the host.
func (d *Dictionary) AddConstant(name string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

// AddEnumeration exposes a name-to-value table. Empty names are skipped.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	enum := make(map[string]int, len(values))
	for i, v := range values {
		if v != "" {
			enum[v] = i
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = enum
	d.cached = nil
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() ([]byte, error) {
	// Take the registry lock before ours, never the other way round.
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.Marshal(protocol.Dictionary{
		Version:       d.version,
		BuildVersions: d.buildVersions,
		Config:        d.constants,
		Commands:      commands,
		Responses:     responses,
		Enumerations:  d.enumerations,
	})
}

// Build compresses and caches the dictionary. Call it after every
// command is registered; later changes invalidate the cache.
func (d *Dictionary) Build() error {
	data, err := d.JSON()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	d.mu.Lock()
	d.cached = buf.Bytes()
	d.mu.Unlock()
	return nil
}

// Generate returns the compressed dictionary, building it if needed.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	if err := d.Build(); err != nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// GetChunk returns a copy of up to count bytes at offset. Past the end
// it returns an empty slice, which tells the host the transfer is done.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
