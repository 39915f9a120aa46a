// Package constants holds the names and tables pluginlint checks plugins against.
package constants

import "path/filepath"

// CLIName is the binary name used in help and messages.
const CLIName = "pluginlint"

// ConfigFileName is the configuration file looked up in the working directory.
const ConfigFileName = "pluginlint.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLUGINLINT_"

// Generation is the plugin API generation a descriptor is written against.
type Generation string

const (
	GenerationV1 Generation = "v1"
	GenerationV2 Generation = "v2"
)

func (g Generation) String() string {
	return string(g)
}

// Generations lists the supported generations in order.
var Generations = []Generation{GenerationV1, GenerationV2}

// Descriptor interfaces; their names double as service registration file names.
const (
	DescriptorV1 = "dev.dsf.bpe.v1.ProcessPluginDefinition"
	DescriptorV2 = "dev.dsf.bpe.v2.ProcessPluginDefinition"
)

// ServicePrefix is shared by every descriptor registration file name.
const ServicePrefix = "dev.dsf.bpe."

// DescriptorInterface returns the descriptor interface of a generation.
func DescriptorInterface(g Generation) string {
	if g == GenerationV2 {
		return DescriptorV2
	}
	return DescriptorV1
}

// GenerationForService maps a registration file name to its generation.
func GenerationForService(service string) (Generation, bool) {
	switch service {
	case DescriptorV1:
		return GenerationV1, true
	case DescriptorV2:
		return GenerationV2, true
	}
	return "", false
}

// Accessor method names every descriptor must provide.
const (
	AccessorName           = "getName"
	AccessorVersion        = "getVersion"
	AccessorReleaseDate    = "getReleaseDate"
	AccessorProcessModels  = "getProcessModels"
	AccessorResourcesByPID = "getFhirResourcesByProcessId"
)

// RequiredAccessors lists the accessors in the order they are reported.
var RequiredAccessors = []string{
	AccessorName,
	AccessorVersion,
	AccessorReleaseDate,
	AccessorProcessModels,
	AccessorResourcesByPID,
}

// Generation 1 implementation contracts.
const (
	V1JavaDelegate            = "org.camunda.bpm.engine.delegate.JavaDelegate"
	V1ExecutionListener       = "org.camunda.bpm.engine.delegate.ExecutionListener"
	V1TaskListener            = "org.camunda.bpm.engine.delegate.TaskListener"
	V1AbstractServiceDelegate = "dev.dsf.bpe.v1.activity.AbstractServiceDelegate"
	V1AbstractTaskMessageSend = "dev.dsf.bpe.v1.activity.AbstractTaskMessageSend"
	V1DefaultUserTaskListener = "dev.dsf.bpe.v1.activity.DefaultUserTaskListener"
)

// Generation 2 implementation contracts.
const (
	V2ServiceTask                   = "dev.dsf.bpe.v2.activity.ServiceTask"
	V2MessageSendTask               = "dev.dsf.bpe.v2.activity.MessageSendTask"
	V2MessageIntermediateThrowEvent = "dev.dsf.bpe.v2.activity.MessageIntermediateThrowEvent"
	V2MessageEndEvent               = "dev.dsf.bpe.v2.activity.MessageEndEvent"
	V2ExecutionListener             = "dev.dsf.bpe.v2.activity.ExecutionListener"
	V2UserTaskListener              = "dev.dsf.bpe.v2.activity.UserTaskListener"
)

// KnownSubtypes maps a contract to API types known to satisfy it. API jars are
// provided by the engine at runtime and usually absent from a bundle, so a walk
// reaching one of these types counts as a match.
var KnownSubtypes = map[string][]string{
	V1JavaDelegate: {V1AbstractServiceDelegate, V1AbstractTaskMessageSend},
	V1TaskListener: {V1DefaultUserTaskListener},
}

// Field injection keys understood on message sending nodes.
const (
	FieldProfile               = "profile"
	FieldMessageName           = "messageName"
	FieldInstantiatesCanonical = "instantiatesCanonical"
)

// AllowedFieldInjections is the closed set of field injection keys.
var AllowedFieldInjections = []string{FieldProfile, FieldMessageName, FieldInstantiatesCanonical}

// Placeholders replaced by the engine when a plugin is deployed.
const (
	PlaceholderVersion      = "#{version}"
	PlaceholderDate         = "#{date}"
	PlaceholderOrganization = "#{organization}"
)

// Default roots searched for compiled classes and resources inside a bundle.
var (
	DefaultClassRoots = []string{
		filepath.Join("target", "classes"),
		"classes",
		filepath.Join("build", "classes", "java", "main"),
	}
	DefaultResourceRoots = []string{
		filepath.Join("src", "main", "resources"),
		filepath.Join("build", "resources", "main"),
	}
)

// SkippedDirs are never searched for archives.
var SkippedDirs = []string{".git", "node_modules", ".idea", ".gradle"}

// Canonical URL shapes.
const (
	ProcessURLSegment = "/bpe/Process/"
	// ProcessAuthorizationExtension marks the authorization extension of an ActivityDefinition.
	ProcessAuthorizationExtension = "http://dsf.dev/fhir/StructureDefinition/extension-process-authorization"
	// BPMNMessageSystem is the code system of Task inputs naming the message.
	BPMNMessageSystem = "http://dsf.dev/fhir/CodeSystem/bpmn-message"
	// MessageNameCode is the Task input code carrying the message name.
	MessageNameCode = "message-name"
)
