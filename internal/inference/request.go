package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxInputSize bounds the request read from stdin.
const maxInputSize = 1 << 20

// Channel names where a request came from.
type Channel string

const (
	ChannelStdin    Channel = "stdin"
	ChannelArgument Channel = "argument"
)

// Input is the raw request material of one invocation.
type Input struct {
	Stdin io.Reader
	Args  []string
}

// Read returns the request text: the single positional argument when one is
// given, otherwise everything on stdin.
func (in Input) Read() (string, Channel, error) {
	switch len(in.Args) {
	case 0:
	case 1:
		return in.Args[0], ChannelArgument, nil
	default:
		return "", ChannelArgument, fmt.Errorf("%w: expected a single JSON argument, got %d", ErrInputFormat, len(in.Args))
	}

	if in.Stdin == nil {
		return "", ChannelStdin, fmt.Errorf("%w: no input received from stdin", ErrInputFormat)
	}
	data, err := io.ReadAll(io.LimitReader(in.Stdin, maxInputSize+1))
	if err != nil {
		return "", ChannelStdin, fmt.Errorf("%w: failed to read stdin: %w", ErrInputFormat, err)
	}
	if len(data) > maxInputSize {
		return "", ChannelStdin, fmt.Errorf("%w: input exceeds %d bytes", ErrInputFormat, maxInputSize)
	}
	return string(data), ChannelStdin, nil
}

// Record is one decoded request. Numbers are kept as json.Number until they
// are cast.
type Record map[string]any

// ParseRecord decodes raw as exactly one JSON object.
func ParseRecord(raw string, channel Channel) (Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: no input received from %s", ErrInputFormat, channel)
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON: %w", ErrInputFormat, channel, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s holds more than one JSON value", ErrInputFormat, channel)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrInputFormat, jsonKind(v))
	}
	return Record(obj), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Missing returns the fields of required that r does not contain. A field
// holding null counts as present.
func (r Record) Missing(required []string) []string {
	var missing []string
	for _, field := range required {
		if _, ok := r[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// Validate fails with a *MissingFieldsError when any required field is absent.
func Validate(r Record, required []string) error {
	if missing := r.Missing(required); len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// toFloat casts a decoded JSON value to float64. Numeric strings are parsed
// and booleans become 0 or 1.
func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("could not convert %q to float", x.String())
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: %q", x)
		}
		f = parsed
	case nil:
		return 0, errors.New("could not convert null to float")
	default:
		return 0, fmt.Errorf("could not convert %s to float", jsonKind(v))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}

// toCategory renders a decoded JSON value the way an encoder sees it.
func toCategory(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}
