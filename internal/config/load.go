package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/lilseedabe/flickmv/internal/snap"
)

// Error codes (E300-E309).
const (
	ErrCodeRead         = "E301" // config file unreadable
	ErrCodeParse        = "E302" // malformed YAML
	ErrCodeUnknownField = "E303" // field not in schema
	ErrCodeSchema       = "E304" // CUE constraint violated
	ErrCodeInvalid      = "E305" // rejected by a component validator
)

// ConfigError describes why a configuration was rejected.
type ConfigError struct {
	Code    string
	Field   string
	Message string
	Line    int // 0 when unknown
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Code)
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d:", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " %s:", e.Field)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	return b.String()
}

//go:embed schema.cue
var schemaSource string

// cue.Context is not safe for concurrent use; schemaMu guards it.
var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	cueCtx     *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
	})
	return cueCtx, schemaDef, schemaErr
}

// Load reads and validates the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(data)
}

// Parse decodes YAML over Defaults and validates the result. Empty input
// yields Defaults.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fromYAML(err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the CUE schema and the component
// validators.
func Validate(cfg Config) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	if err := unifySchema(ctx, def, cfg); err != nil {
		return err
	}

	if err := cfg.Scale.Validate(); err != nil {
		return &ConfigError{Code: ErrCodeInvalid, Field: "scale", Message: err.Error()}
	}
	if err := cfg.Grid.Validate(); err != nil {
		var ve *snap.ValidationError
		if errors.As(err, &ve) {
			return &ConfigError{Code: ve.Code, Field: "grid." + ve.Field, Message: ve.Message}
		}
		return &ConfigError{Code: ErrCodeInvalid, Field: "grid", Message: err.Error()}
	}
	return nil
}

func unifySchema(ctx *cue.Context, def cue.Value, cfg Config) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	data := ctx.Encode(cfg)
	if err := data.Err(); err != nil {
		return &ConfigError{Code: ErrCodeSchema, Message: err.Error()}
	}
	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fromCUE(err)
	}
	return nil
}

var (
	lineRe    = regexp.MustCompile(`line (\d+)`)
	unknownRe = regexp.MustCompile(`field (\S+) not found`)
)

func fromYAML(err error) *ConfigError {
	msg := err.Error()
	ce := &ConfigError{Code: ErrCodeParse, Message: msg}

	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
		ce.Message = msg
		if m := unknownRe.FindStringSubmatch(msg); m != nil {
			ce.Code = ErrCodeUnknownField
			ce.Field = m[1]
		}
	}
	if m := lineRe.FindStringSubmatch(msg); m != nil {
		ce.Line, _ = strconv.Atoi(m[1])
	}
	return ce
}

func fromCUE(err error) *ConfigError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Code: ErrCodeSchema, Message: err.Error()}
	}
	first := errs[0]
	path := first.Path()
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return &ConfigError{
		Code:    ErrCodeSchema,
		Field:   strings.Join(path, "."),
		Message: first.Error(),
	}
}
