package fhir

import (
	"bytes"
	"fmt"

	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var loaderLog = logger.New("fhir:loader")

// Load decodes a resource file. JSON is detected by a leading '{', anything else
// is read as XML. Unknown resource types fail with a *ParseError.
func Load(path string, data []byte) (Resource, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	var (
		res Resource
		err error
	)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		res, err = loadJSON(path, trimmed)
	} else {
		res, err = loadXML(path, trimmed)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	b := res.Base()
	loaderLog.Printf("Loaded resource: path=%s type=%s url=%s", path, b.ResourceType, b.URL)
	return res, nil
}

func unsupportedType(name string) error {
	return fmt.Errorf("unsupported resource type %q", name)
}
