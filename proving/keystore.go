package proving

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"
)

// ErrStaleKeys reports keys set up for a circuit whose constants have since
// changed, such as the genesis anchor or an embedded verifying key.
var ErrStaleKeys = errors.New("circuit keys were set up with different constants")

// Keys are the compiled constraint system of a circuit and its Groth16 keys.
// Constants is the fingerprint of the circuit constants baked in at setup.
type Keys struct {
	CCS       constraint.ConstraintSystem
	PK        groth16.ProvingKey
	VK        groth16.VerifyingKey
	Constants string
}

// KeyStore compiles and sets up circuits once, caching the result in memory and,
// when dir is set, on disk as <name>.ccs, <name>.pk, <name>.vk and <name>.constants.
type KeyStore struct {
	dir string
	log zerolog.Logger

	mu   sync.Mutex
	keys map[string]*Keys
}

func NewKeyStore(dir string, log zerolog.Logger) (*KeyStore, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create key dir: %w", err)
		}
	}
	return &KeyStore{dir: dir, log: log, keys: make(map[string]*Keys)}, nil
}

// Load returns the keys of name, compiling placeholder and running the setup if
// they are neither cached nor on disk. Keys whose constants differ from those of
// placeholder are rejected with ErrStaleKeys.
func (s *KeyStore) Load(name string, placeholder frontend.Circuit) (*Keys, error) {
	constants, err := Fingerprint(placeholder)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[name]
	if !ok {
		if k, err = s.read(name); err != nil {
			return nil, err
		}
	}
	if k == nil {
		if k, err = s.setup(name, placeholder, constants); err != nil {
			return nil, err
		}
	}
	if k.Constants != constants {
		return nil, fmt.Errorf("%w: %s was set up with constants %s, want %s; use a fresh key dir",
			ErrStaleKeys, name, k.Constants, constants)
	}
	s.keys[name] = k
	return k, nil
}

// ConstraintSystem returns the compiled circuit of name without compiling it.
func (s *KeyStore) ConstraintSystem(name string) (constraint.ConstraintSystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[name]; ok {
		return k.CCS, nil
	}
	k, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, fmt.Errorf("circuit %s has not been set up", name)
	}
	s.keys[name] = k
	return k.CCS, nil
}

func (s *KeyStore) setup(name string, placeholder frontend.Circuit, constants string) (*Keys, error) {
	s.log.Info().Str("circuit", name).Msg("compiling circuit")
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, placeholder)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	s.log.Info().Str("circuit", name).
		Int("constraints", ccs.GetNbConstraints()).
		Int("public_inputs", ccs.GetNbPublicVariables()).
		Msg("generating proving and verifying keys")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setup %s: %w", name, err)
	}
	k := &Keys{CCS: ccs, PK: pk, VK: vk, Constants: constants}
	if s.dir == "" {
		return k, nil
	}
	files := map[string]io.WriterTo{
		".ccs":       ccs,
		".pk":        pk,
		".vk":        vk,
		".constants": bytes.NewBufferString(constants),
	}
	for ext, obj := range files {
		if err := writeFile(filepath.Join(s.dir, name+ext), obj); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// read loads the keys of name from disk. Missing files yield nil keys.
func (s *KeyStore) read(name string) (*Keys, error) {
	if s.dir == "" {
		return nil, nil
	}
	k := &Keys{
		CCS: groth16.NewCS(ecc.BN254),
		PK:  groth16.NewProvingKey(ecc.BN254),
		VK:  groth16.NewVerifyingKey(ecc.BN254),
	}
	for ext, obj := range map[string]io.ReaderFrom{".ccs": k.CCS, ".pk": k.PK, ".vk": k.VK} {
		f, err := os.Open(filepath.Join(s.dir, name+ext))
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		_, err = obj.ReadFrom(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s%s: %w", name, ext, err)
		}
	}
	constants, err := os.ReadFile(filepath.Join(s.dir, name+".constants"))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s has no recorded constants", ErrStaleKeys, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s.constants: %w", name, err)
	}
	k.Constants = string(constants)
	s.log.Info().Str("circuit", name).Msg("loaded circuit keys")
	return k, nil
}

func writeFile(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := obj.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Fingerprint hashes the constants of a circuit: every field tagged gnark:"-",
// found by walking the circuit and the sub-circuits it embeds.
func Fingerprint(c frontend.Circuit) (string, error) {
	h := sha256.New()
	if err := hashConstants(h, reflect.ValueOf(c), ""); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashConstants(w io.Writer, v reflect.Value, path string) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fieldPath := path + "." + f.Name
			if f.Tag.Get("gnark") == "-" {
				raw, err := json.Marshal(v.Field(i).Interface())
				if err != nil {
					return fmt.Errorf("constant %s: %w", fieldPath, err)
				}
				fmt.Fprintf(w, "%s=%s;", fieldPath, raw)
				continue
			}
			if err := hashConstants(w, v.Field(i), fieldPath); err != nil {
				return err
			}
		}
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := hashConstants(w, v.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}
