// Package image implements the packaged program format: an instruction
// stream plus metadata, encoded as canonical CBOR so that equal programs
// encode to equal bytes.
package image

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/sbc/pkg/bytecode"
	"github.com/chazu/sbc/vm"
)

// Magic identifies a packaged image.
const Magic = "SBCI"

// Version is the current image format version.
// Increment when making incompatible changes to the format.
const Version uint16 = 1

var (
	// ErrNotImage is returned when data does not start with an image header.
	ErrNotImage = errors.New("not an sbc image")

	// ErrDigestMismatch is returned when the code does not match its digest.
	ErrDigestMismatch = errors.New("image digest mismatch")
)

// Image is a packaged program.
type Image struct {
	Magic    string   `cbor:"1,keyasint"`
	Version  uint16   `cbor:"2,keyasint"`
	Name     string   `cbor:"3,keyasint"`
	Code     []byte   `cbor:"4,keyasint"`
	Digest   [32]byte `cbor:"5,keyasint"`           // sha256 of Code
	Builtins []string `cbor:"6,keyasint,omitempty"` // names referenced by BLTIN
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Pack builds an image for code. The code is copied. The stream is scanned
// for builtin references; a stream that cannot be decoded is rejected.
func Pack(name string, code []byte) (*Image, error) {
	names, err := ReferencedBuiltins(code)
	if err != nil {
		return nil, fmt.Errorf("image: %s: %w", name, err)
	}
	return build(name, code, names), nil
}

func build(name string, code []byte, names []string) *Image {
	buf := make([]byte, len(code))
	copy(buf, code)
	return &Image{
		Magic:    Magic,
		Version:  Version,
		Name:     name,
		Code:     buf,
		Digest:   sha256.Sum256(buf),
		Builtins: names,
	}
}

// Marshal serializes an image to CBOR bytes.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an image and verifies its header and digest.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w: %w", ErrNotImage, err)
	}
	if err := img.Verify(); err != nil {
		return nil, err
	}
	return &img, nil
}

// Verify checks the header and digest.
func (img *Image) Verify() error {
	if img.Magic != Magic {
		return fmt.Errorf("image: %w: magic %q", ErrNotImage, img.Magic)
	}
	if img.Version > Version {
		return fmt.Errorf("image: version %d is newer than supported version %d", img.Version, Version)
	}
	if sha256.Sum256(img.Code) != img.Digest {
		return fmt.Errorf("image: %s: %w", img.Name, ErrDigestMismatch)
	}
	return nil
}

// CheckBuiltins reports the first referenced builtin missing from r.
func (img *Image) CheckBuiltins(r *vm.Registry) error {
	for _, name := range img.Builtins {
		if _, ok := r.Lookup(name); !ok {
			return fmt.Errorf("image: %s: %w: %q", img.Name, vm.ErrUnknownBuiltin, name)
		}
	}
	return nil
}

// IsImage reports whether data looks like a CBOR-encoded image.
func IsImage(data []byte) bool {
	var header struct {
		Magic string `cbor:"1,keyasint"`
	}
	if len(data) == 0 || !bytes.Contains(data[:min(len(data), 16)], []byte(Magic)) {
		return false
	}
	return cbor.Unmarshal(data, &header) == nil && header.Magic == Magic
}

// Load returns the program in data: a decoded image, or an image wrapping
// data when it is a raw stream. Raw streams are not validated here; a
// malformed stream faults when it runs.
func Load(name string, data []byte) (*Image, error) {
	if IsImage(data) {
		return Unmarshal(data)
	}
	names, _ := ReferencedBuiltins(data)
	return build(name, data, names), nil
}

// ReferencedBuiltins returns the sorted, de-duplicated builtin names
// referenced by BLTIN instructions in code, including nested blocks.
func ReferencedBuiltins(code []byte) ([]string, error) {
	seen := make(map[string]bool)
	for pc := 0; pc < len(code); {
		in, err := bytecode.Decode(code, pc)
		if err != nil {
			return nil, err
		}
		if in.Op == bytecode.OpBltin {
			seen[string(in.Payload)] = true
		}
		pc = in.Next()
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
