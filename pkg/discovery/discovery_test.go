//go:build !integration

package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bpe-tools/pluginlint/pkg/classfile"
	"github.com/bpe-tools/pluginlint/pkg/classfile/classfiletest"
	"github.com/bpe-tools/pluginlint/pkg/classpath"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func accessorMethods() []classfiletest.Method {
	return []classfiletest.Method{
		classfiletest.PublicConstructor(),
		classfiletest.Getter(constants.AccessorName, "ping"),
		classfiletest.Getter(constants.AccessorVersion, "1.0.0.0"),
		classfiletest.Getter(constants.AccessorReleaseDate, 2024, 5, 1),
		classfiletest.Getter(constants.AccessorProcessModels, "bpe/ping.bpmn", "bpe/pong.bpmn"),
		classfiletest.Getter(constants.AccessorResourcesByPID,
			"dsfdev_ping", "fhir/ActivityDefinition/ping.xml", "fhir/Task/ping.xml",
			"dsfdev_pong", "fhir/ActivityDefinition/pong.xml"),
	}
}

func descriptorClass(name string, ifaces ...string) classfiletest.Class {
	return classfiletest.Class{Name: name, Interfaces: ifaces, Methods: accessorMethods()}
}

// testBundle is a class directory with service registrations.
type testBundle struct {
	t    *testing.T
	root string
}

func newTestBundle(t *testing.T) *testBundle {
	return &testBundle{t: t, root: t.TempDir()}
}

func (b *testBundle) write(rel string, data []byte) {
	b.t.Helper()
	p := filepath.Join(b.root, filepath.FromSlash(rel))
	require.NoError(b.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(b.t, os.WriteFile(p, data, 0o644))
}

func (b *testBundle) class(c classfiletest.Class) {
	b.write(classfile.EntryName(c.Name), classfiletest.Build(c))
}

func (b *testBundle) register(service string, classNames ...string) {
	b.write("META-INF/services/"+service, []byte(strings.Join(classNames, "\n")+"\n"))
}

func (b *testBundle) discover() Result {
	b.t.Helper()
	set, err := classpath.NewArchiveSet([]classpath.Archive{classpath.NewDirArchive(b.root, "classes")}, classpath.Options{})
	require.NoError(b.t, err)
	b.t.Cleanup(func() { _ = set.Close() })
	res, err := Discover(set)
	require.NoError(b.t, err)
	return res
}

func TestDiscover_V1Descriptor(t *testing.T) {
	b := newTestBundle(t)
	b.class(descriptorClass("org.ex.PingDefinition", constants.DescriptorV1))
	b.register(constants.DescriptorV1, "# ping plugin", "", "org.ex.PingDefinition")

	res := b.discover()
	require.Empty(t, res.Errors)
	require.Len(t, res.Descriptors, 1)

	d := res.Descriptors[0]
	assert.Equal(t, "org.ex.PingDefinition", d.ClassName)
	assert.Equal(t, "classes!/META-INF/services/"+constants.DescriptorV1, d.Registration)
	assert.Equal(t, constants.GenerationV1, d.Generation)
	assert.False(t, d.GenerationMismatch())
	assert.Equal(t, "ping", d.Name)
	assert.Equal(t, "1.0.0.0", d.Version)
	assert.Equal(t, "2024-05-01", d.ReleaseDate)
	assert.Equal(t, []string{"bpe/ping.bpmn", "bpe/pong.bpmn"}, d.WorkflowGraphPaths)
	assert.Equal(t, []string{"dsfdev_ping", "dsfdev_pong"}, d.ProcessIDs)
	assert.Equal(t, map[string][]string{
		"dsfdev_ping": {"fhir/ActivityDefinition/ping.xml", "fhir/Task/ping.xml"},
		"dsfdev_pong": {"fhir/ActivityDefinition/pong.xml"},
	}, d.ResourcesByProcessID)
}

func TestDiscover_InheritedAccessorsAndInterface(t *testing.T) {
	b := newTestBundle(t)
	base := descriptorClass("org.ex.BaseDefinition", constants.DescriptorV2)
	base.Access = 0x0421
	b.class(base)
	b.class(classfiletest.Class{
		Name:    "org.ex.PingDefinition",
		Super:   "org.ex.BaseDefinition",
		Methods: []classfiletest.Method{classfiletest.PublicConstructor(), classfiletest.Getter(constants.AccessorName, "child")},
	})
	b.register(constants.DescriptorV2, "org.ex.PingDefinition")

	res := b.discover()
	require.Empty(t, res.Errors)
	require.Len(t, res.Descriptors, 1)
	d := res.Descriptors[0]
	assert.Equal(t, constants.GenerationV2, d.Generation)
	assert.Equal(t, "child", d.Name, "the subclass accessor overrides the inherited one")
	assert.Equal(t, "1.0.0.0", d.Version, "inherited accessor is used")
}

func TestDiscover_GenerationMismatch(t *testing.T) {
	b := newTestBundle(t)
	b.class(descriptorClass("org.ex.PingDefinition", constants.DescriptorV2))
	b.register(constants.DescriptorV1, "org.ex.PingDefinition")

	res := b.discover()
	require.Len(t, res.Descriptors, 1)
	d := res.Descriptors[0]
	assert.Equal(t, constants.GenerationV2, d.Generation)
	assert.Equal(t, constants.GenerationV1, d.RegisteredGeneration)
	assert.True(t, d.GenerationMismatch())
}

func TestDiscover_RepeatedRegistration(t *testing.T) {
	b := newTestBundle(t)
	b.class(descriptorClass("org.ex.PingDefinition", constants.DescriptorV1))
	b.class(descriptorClass("org.ex.PongDefinition", constants.DescriptorV1))
	b.register(constants.DescriptorV1, "org.ex.PingDefinition", "org.ex.PongDefinition", "org.ex.PingDefinition")

	res := b.discover()
	require.Len(t, res.Descriptors, 2)
	assert.Equal(t, "org.ex.PingDefinition", res.Descriptors[0].ClassName)
	assert.Equal(t, "org.ex.PongDefinition", res.Descriptors[1].ClassName)
	assert.Empty(t, res.Errors)
}

func TestDiscover_Errors(t *testing.T) {
	without := func(name string) classfiletest.Class {
		c := descriptorClass("org.ex.Def", constants.DescriptorV1)
		kept := c.Methods[:0:0]
		for _, m := range c.Methods {
			if m.Name != name {
				kept = append(kept, m)
			}
		}
		c.Methods = kept
		return c
	}

	tests := []struct {
		name    string
		class   *classfiletest.Class
		raw     []byte
		want    ErrorKind
		missing []string
	}{
		{
			name: "class not in bundle",
			want: ClassLoadingFailed,
		},
		{
			name: "malformed class file",
			raw:  []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0},
			want: ClassLoadingFailed,
		},
		{
			name:  "no descriptor interface",
			class: ptr(descriptorClass("org.ex.Def")),
			want:  InvalidGeneration,
		},
		{
			name:  "both descriptor interfaces",
			class: ptr(descriptorClass("org.ex.Def", constants.DescriptorV1, constants.DescriptorV2)),
			want:  InvalidGeneration,
		},
		{
			name: "abstract class",
			class: func() *classfiletest.Class {
				c := descriptorClass("org.ex.Def", constants.DescriptorV1)
				c.Access = 0x0421
				return &c
			}(),
			want: InstantiationFailed,
		},
		{
			name:  "no constructor",
			class: ptr(without("<init>")),
			want:  InstantiationFailed,
		},
		{
			name: "private constructor",
			class: func() *classfiletest.Class {
				c := without("<init>")
				c.Methods = append(c.Methods, classfiletest.Method{Name: "<init>", Descriptor: "()V", Access: 0x0002})
				return &c
			}(),
			want: InstantiationFailed,
		},
		{
			name:    "missing accessor",
			class:   ptr(without(constants.AccessorReleaseDate)),
			want:    MissingMethods,
			missing: []string{constants.AccessorReleaseDate},
		},
		{
			name: "abstract accessor",
			class: func() *classfiletest.Class {
				c := without(constants.AccessorVersion)
				c.Methods = append(c.Methods, classfiletest.Method{Name: constants.AccessorVersion, Abstract: true})
				return &c
			}(),
			want:    MissingMethods,
			missing: []string{constants.AccessorVersion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBundle(t)
			switch {
			case tt.class != nil:
				b.class(*tt.class)
			case tt.raw != nil:
				b.write(classfile.EntryName("org.ex.Def"), tt.raw)
			}
			b.register(constants.DescriptorV1, "org.ex.Def")

			res := b.discover()
			assert.Empty(t, res.Descriptors)
			require.Len(t, res.Errors, 1)
			e := res.Errors[0]
			assert.Equal(t, tt.want, e.Kind, "error: %v", e)
			assert.Equal(t, "org.ex.Def", e.ClassName)
			assert.Equal(t, tt.missing, e.Missing)
			assert.Contains(t, e.Error(), string(tt.want))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseRegistration(t *testing.T) {
	data := "\ufeff# header\n org.ex.A \n\norg.ex.B # trailing\r\n#org.ex.C\n"
	assert.Equal(t, []string{"org.ex.A", "org.ex.B"}, parseRegistration([]byte(data)))
}

func TestReleaseDate(t *testing.T) {
	tests := []struct {
		name   string
		consts []classfile.Constant
		want   string
	}{
		{"iso string", []classfile.Constant{{Kind: classfile.StringConstant, Str: "2023-12-24"}}, "2023-12-24"},
		{"local date ints", []classfile.Constant{{Kind: classfile.IntConstant, Int: 2025}, {Kind: classfile.IntConstant, Int: 1}, {Kind: classfile.IntConstant, Int: 9}}, "2025-01-09"},
		{"too few ints", []classfile.Constant{{Kind: classfile.IntConstant, Int: 2025}}, ""},
		{"out of range", []classfile.Constant{{Kind: classfile.IntConstant, Int: 2025}, {Kind: classfile.IntConstant, Int: 13}, {Kind: classfile.IntConstant, Int: 1}}, ""},
		{"non date string", []classfile.Constant{{Kind: classfile.StringConstant, Str: "soon"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, releaseDate(tt.consts))
		})
	}
}

func TestGroupResources(t *testing.T) {
	groups, order := groupResources([]string{"orphan.xml", "a_p", "x/1.xml", "b_p", "a_p", "x/2.json"})
	assert.Equal(t, []string{"a_p", "b_p"}, order)
	assert.Equal(t, map[string][]string{"a_p": {"x/1.xml", "x/2.json"}, "b_p": nil}, groups)
}

// TestDiscover_SplitsGoodAndBad registers N classes of which K are broken and
// checks that exactly N-K descriptors and K errors come back.
func TestDiscover_SplitsGoodAndBad(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "registrations")
		b := &testBundle{t: t, root: t.TempDir()}

		var names []string
		bad := 0
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("org.ex.Def%d", i)
			names = append(names, name)
			switch rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("kind%d", i)) {
			case 0:
				b.class(descriptorClass(name, constants.DescriptorV1))
			case 1:
				bad++ // not written at all
			case 2:
				bad++
				b.write(classfile.EntryName(name), []byte("not a class"))
			case 3:
				bad++
				b.class(descriptorClass(name))
			case 4:
				bad++
				c := descriptorClass(name, constants.DescriptorV1)
				c.Methods = c.Methods[:2]
				b.class(c)
			}
		}
		b.register(constants.DescriptorV1, names...)

		res := b.discover()
		if len(res.Descriptors) != n-bad || len(res.Errors) != bad {
			rt.Fatalf("n=%d bad=%d: got %d descriptors and %d errors", n, bad, len(res.Descriptors), len(res.Errors))
		}
	})
}
