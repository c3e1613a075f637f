// Package serde implements the `serde` global: JSON/TOML/YAML encode
// and decode, one-shot gzip/zlib/brotli compression, and hash/HMAC
// digests, all buffer-in/buffer-out rather than streaming, matching
// `serde.compress`/`serde.decompress`'s non-streaming signature.
package serde

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/andybalholm/brotli"
	"github.com/lune-org/lune/internal/core"
	"gopkg.in/yaml.v3"
)

// Runtime is core.JSRuntime narrowed to what serde needs.
type Runtime interface {
	core.JSRuntime
}

func getHasher(algo string) (hash.Hash, error) {
	switch algo {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256", "":
		return sha256.New(), nil
	case "sha224":
		return sha256.New224(), nil
	default:
		return nil, fmt.Errorf("serde.hash: unsupported algorithm %q", algo)
	}
}

func encodeJSON(valueJSON string, pretty bool) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(valueJSON), &v); err != nil {
		return "", err
	}
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	return string(b), err
}

func decodeJSON(text string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func encodeTOML(valueJSON string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(valueJSON), &v); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func decodeTOML(text string) (string, error) {
	var v any
	if _, err := toml.Decode(text, &v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func encodeYAML(valueJSON string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(valueJSON), &v); err != nil {
		return "", err
	}
	b, err := yaml.Marshal(v)
	return string(b), err
}

func decodeYAML(text string) (string, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return "", err
	}
	// yaml.v3 decodes maps as map[string]any with some non-JSON-safe key
	// types possible (e.g. map[any]any nested); round-trip through a
	// generic re-marshal via JSON-compatible conversion.
	jsonSafe := toJSONSafe(v)
	b, err := json.Marshal(jsonSafe)
	return string(b), err
}

func toJSONSafe(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = toJSONSafe(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[fmt.Sprint(k)] = toJSONSafe(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = toJSONSafe(vv)
		}
		return out
	default:
		return val
	}
}

const maxDecompressedSize = 128 * 1024 * 1024

func compressBytes(format string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch format {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "brotli":
		w = brotli.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("serde.compress: unsupported format %q", format)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBytes(format string, data []byte) ([]byte, error) {
	var r io.Reader
	switch format {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case "zlib":
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "brotli":
		r = brotli.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("serde.decompress: unsupported format %q", format)
	}
	return io.ReadAll(io.LimitReader(r, maxDecompressedSize))
}

// Register installs the serde.* globals into rt.
func Register(rt Runtime) error {
	fns := map[string]any{
		"__serde_jsonEncode": func(valueJSON string, pretty bool) (string, error) {
			return encodeJSON(valueJSON, pretty)
		},
		"__serde_jsonDecode": decodeJSON,
		"__serde_tomlEncode": encodeTOML,
		"__serde_tomlDecode": decodeTOML,
		"__serde_yamlEncode": encodeYAML,
		"__serde_yamlDecode": decodeYAML,
		"__serde_compress": func(format, dataB64 string) (string, error) {
			data, err := base64.StdEncoding.DecodeString(dataB64)
			if err != nil {
				return "", err
			}
			out, err := compressBytes(format, data)
			if err != nil {
				return "", err
			}
			return base64.StdEncoding.EncodeToString(out), nil
		},
		"__serde_decompress": func(format, dataB64 string) (string, error) {
			data, err := base64.StdEncoding.DecodeString(dataB64)
			if err != nil {
				return "", err
			}
			out, err := decompressBytes(format, data)
			if err != nil {
				return "", err
			}
			return base64.StdEncoding.EncodeToString(out), nil
		},
		"__serde_hash": func(algo, data string) (string, error) {
			h, err := getHasher(algo)
			if err != nil {
				return "", err
			}
			h.Write([]byte(data))
			return hex.EncodeToString(h.Sum(nil)), nil
		},
		"__serde_hmac": func(algo, data, key string) (string, error) {
			if _, err := getHasher(algo); err != nil {
				return "", err
			}
			mac := hmac.New(func() hash.Hash { hh, _ := getHasher(algo); return hh }, []byte(key))
			mac.Write([]byte(data))
			return hex.EncodeToString(mac.Sum(nil)), nil
		},
	}

	for name, fn := range fns {
		if err := rt.RegisterFunc(name, fn); err != nil {
			return err
		}
	}
	return rt.Eval(serdeBootstrapJS)
}

const serdeBootstrapJS = `
(function() {
	globalThis.serde = {
		encode: function(format, value, pretty) {
			var json = JSON.stringify(value === undefined ? null : value);
			switch (format) {
				case 'json': return __serde_jsonEncode(json, !!pretty);
				case 'toml': return __serde_tomlEncode(json);
				case 'yaml': return __serde_yamlEncode(json);
				default: throw new Error('serde.encode: unsupported format ' + format);
			}
		},
		decode: function(format, text) {
			var json;
			switch (format) {
				case 'json': json = __serde_jsonDecode(text); break;
				case 'toml': json = __serde_tomlDecode(text); break;
				case 'yaml': json = __serde_yamlDecode(text); break;
				default: throw new Error('serde.decode: unsupported format ' + format);
			}
			return JSON.parse(json);
		},
		compress: function(format, data) { return __serde_compress(format, String(data)); },
		decompress: function(format, data) { return __serde_decompress(format, String(data)); },
		hash: function(algo, data) { return __serde_hash(algo, String(data)); },
		hmac: function(algo, data, key) { return __serde_hmac(algo, String(data), String(key)); }
	};
})();
`
