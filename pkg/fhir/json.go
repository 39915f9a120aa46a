package fhir

import (
	"errors"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/tidwall/gjson"
)

func loadJSON(path string, data []byte) (Resource, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("resource is not a JSON object")
	}
	rt := root.Get("resourceType").String()
	if rt == "" {
		return nil, errors.New("missing resourceType")
	}

	common := Common{
		Path:         path,
		ResourceType: rt,
		ID:           root.Get("id").String(),
		URL:          root.Get("url").String(),
		Version:      root.Get("version").String(),
		Date:         root.Get("date").String(),
		Status:       root.Get("status").String(),
		Name:         root.Get("name").String(),
	}
	for _, p := range root.Get("meta.profile").Array() {
		common.Profiles = append(common.Profiles, p.String())
	}

	switch rt {
	case "ActivityDefinition":
		return jsonActivityDefinition(root, common), nil
	case "StructureDefinition":
		return jsonStructureDefinition(root, common), nil
	case "Task":
		return jsonTask(root, common), nil
	}
	if genericTypes[rt] {
		return &Generic{Common: common}, nil
	}
	return nil, unsupportedType(rt)
}

func jsonActivityDefinition(root gjson.Result, common Common) *AuthorizationManifest {
	m := &AuthorizationManifest{Common: common, Kind: root.Get("kind").String()}
	for _, ext := range root.Get("extension").Array() {
		if ext.Get("url").String() != constants.ProcessAuthorizationExtension {
			continue
		}
		var a ProcessAuthorization
		for _, sub := range ext.Get("extension").Array() {
			switch sub.Get("url").String() {
			case "message-name":
				a.MessageName = jsonValueX(sub)
			case "task-profile":
				a.TaskProfile = jsonValueX(sub)
			case "requester":
				a.Requesters = append(a.Requesters, jsonValueX(sub))
			case "recipient":
				a.Recipients = append(a.Recipients, jsonValueX(sub))
			}
		}
		m.Authorizations = append(m.Authorizations, a)
	}
	return m
}

func jsonStructureDefinition(root gjson.Result, common Common) *SchemaDefinition {
	s := &SchemaDefinition{
		Common:         common,
		Type:           root.Get("type").String(),
		BaseDefinition: root.Get("baseDefinition").String(),
	}
	for _, el := range root.Get("differential.element").Array() {
		e := SchemaElement{
			ID:        el.Get("id").String(),
			Path:      el.Get("path").String(),
			SliceName: el.Get("sliceName").String(),
			Min:       -1,
			Max:       el.Get("max").String(),
			FixedCode: el.Get("fixedCode").String(),
			FixedURI:  el.Get("fixedUri").String(),
		}
		if v := el.Get("min"); v.Exists() {
			e.Min = int(v.Int())
		}
		s.Elements = append(s.Elements, e)
	}
	return s
}

func jsonTask(root gjson.Result, common Common) *MessageTemplate {
	t := &MessageTemplate{
		Common:                common,
		InstantiatesCanonical: root.Get("instantiatesCanonical").String(),
		Intent:                root.Get("intent").String(),
		AuthoredOn:            root.Get("authoredOn").String(),
		Requester: Identifier{
			System: root.Get("requester.identifier.system").String(),
			Value:  root.Get("requester.identifier.value").String(),
		},
	}
	for _, rec := range root.Get("restriction.recipient").Array() {
		if id := rec.Get("identifier"); id.Exists() {
			t.Recipients = append(t.Recipients, Identifier{System: id.Get("system").String(), Value: id.Get("value").String()})
		}
	}
	for _, in := range root.Get("input").Array() {
		t.Inputs = append(t.Inputs, TaskInput{
			System: in.Get("type.coding.0.system").String(),
			Code:   in.Get("type.coding.0.code").String(),
			Value:  jsonValueX(in),
		})
	}
	return t
}

// jsonValueX returns the first value[x] property as a string; a Coding yields its code.
func jsonValueX(obj gjson.Result) string {
	var out string
	obj.ForEach(func(key, value gjson.Result) bool {
		if !strings.HasPrefix(key.String(), "value") {
			return true
		}
		switch {
		case value.IsObject():
			out = value.Get("code").String()
		case value.IsArray():
		default:
			out = value.String()
		}
		return false
	})
	return out
}
