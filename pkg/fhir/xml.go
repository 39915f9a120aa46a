package fhir

import (
	"strconv"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/xmltree"
)

func loadXML(path string, data []byte) (Resource, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	common := Common{
		Path:         path,
		ResourceType: root.Name,
		ID:           root.Value("id"),
		URL:          root.Value("url"),
		Version:      root.Value("version"),
		Date:         root.Value("date"),
		Status:       root.Value("status"),
		Name:         root.Value("name"),
	}
	if meta := root.Child("meta"); meta != nil {
		for _, p := range meta.ChildrenNamed("profile") {
			common.Profiles = append(common.Profiles, p.Attr("value"))
		}
	}

	switch root.Name {
	case "ActivityDefinition":
		return xmlActivityDefinition(root, common), nil
	case "StructureDefinition":
		return xmlStructureDefinition(root, common), nil
	case "Task":
		return xmlTask(root, common), nil
	}
	if genericTypes[root.Name] {
		return &Generic{Common: common}, nil
	}
	return nil, unsupportedType(root.Name)
}

func xmlActivityDefinition(root *xmltree.Element, common Common) *AuthorizationManifest {
	m := &AuthorizationManifest{Common: common, Kind: root.Value("kind")}
	for _, ext := range root.ChildrenNamed("extension") {
		if ext.Attr("url") != constants.ProcessAuthorizationExtension {
			continue
		}
		var a ProcessAuthorization
		for _, sub := range ext.ChildrenNamed("extension") {
			switch sub.Attr("url") {
			case "message-name":
				a.MessageName = xmlValueX(sub)
			case "task-profile":
				a.TaskProfile = xmlValueX(sub)
			case "requester":
				a.Requesters = append(a.Requesters, xmlCodingCode(sub))
			case "recipient":
				a.Recipients = append(a.Recipients, xmlCodingCode(sub))
			}
		}
		m.Authorizations = append(m.Authorizations, a)
	}
	return m
}

func xmlStructureDefinition(root *xmltree.Element, common Common) *SchemaDefinition {
	s := &SchemaDefinition{
		Common:         common,
		Type:           root.Value("type"),
		BaseDefinition: root.Value("baseDefinition"),
	}
	diff := root.Child("differential")
	if diff == nil {
		return s
	}
	for _, el := range diff.ChildrenNamed("element") {
		e := SchemaElement{
			ID:        el.Attr("id"),
			Path:      el.Value("path"),
			SliceName: el.Value("sliceName"),
			Min:       -1,
			Max:       el.Value("max"),
			FixedCode: el.Value("fixedCode"),
			FixedURI:  el.Value("fixedUri"),
		}
		if v := el.Value("min"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				e.Min = n
			}
		}
		s.Elements = append(s.Elements, e)
	}
	return s
}

func xmlTask(root *xmltree.Element, common Common) *MessageTemplate {
	t := &MessageTemplate{
		Common:                common,
		InstantiatesCanonical: root.Value("instantiatesCanonical"),
		Intent:                root.Value("intent"),
		AuthoredOn:            root.Value("authoredOn"),
	}
	if id := root.Path("requester", "identifier"); id != nil {
		t.Requester = Identifier{System: id.Value("system"), Value: id.Value("value")}
	}
	if r := root.Child("restriction"); r != nil {
		for _, rec := range r.ChildrenNamed("recipient") {
			if id := rec.Child("identifier"); id != nil {
				t.Recipients = append(t.Recipients, Identifier{System: id.Value("system"), Value: id.Value("value")})
			}
		}
	}
	for _, in := range root.ChildrenNamed("input") {
		var ti TaskInput
		if c := in.Path("type", "coding"); c != nil {
			ti.System = c.Value("system")
			ti.Code = c.Value("code")
		}
		ti.Value = xmlValueX(in)
		t.Inputs = append(t.Inputs, ti)
	}
	return t
}

// xmlValueX returns the value of the first value[x] child. Complex values such
// as valueReference report "".
func xmlValueX(e *xmltree.Element) string {
	for _, c := range e.Children {
		if strings.HasPrefix(c.Name, "value") {
			if v, ok := c.LookupAttr("value"); ok {
				return v
			}
			if c.Name == "valueCoding" {
				return c.Value("code")
			}
			return ""
		}
	}
	return ""
}

func xmlCodingCode(e *xmltree.Element) string {
	if c := e.Child("valueCoding"); c != nil {
		return c.Value("code")
	}
	return xmlValueX(e)
}
