package core

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/loadmesh/jenkins-converge/model"
)

const (
	jnlpLauncherClass    = "hudson.slaves.JNLPLauncher"
	commandLauncherClass = "hudson.slaves.CommandLauncher"
	sshLauncherClass     = "hudson.plugins.sshslaves.SSHLauncher"

	alwaysRetentionClass = "hudson.slaves.RetentionStrategy$Always"
	demandRetentionClass = "hudson.slaves.RetentionStrategy$Demand"

	envComparatorClass = "hudson.util.CaseInsensitiveComparator"
)

var launcherClasses = map[model.LauncherType]string{
	model.LauncherJNLP:    jnlpLauncherClass,
	model.LauncherCommand: commandLauncherClass,
	model.LauncherSSH:     sshLauncherClass,
}

// slaveXML is the document exchanged by get-node, create-node and update-node.
type slaveXML struct {
	XMLName           xml.Name          `xml:"slave"`
	Name              string            `xml:"name"`
	Description       string            `xml:"description"`
	RemoteFS          string            `xml:"remoteFS"`
	NumExecutors      string            `xml:"numExecutors"`
	Mode              string            `xml:"mode"`
	RetentionStrategy retentionXML      `xml:"retentionStrategy"`
	Launcher          launcherXML       `xml:"launcher"`
	Label             string            `xml:"label"`
	NodeProperties    nodePropertiesXML `xml:"nodeProperties"`
	UserID            string            `xml:"userId,omitempty"`
}

type retentionXML struct {
	Class         string `xml:"class,attr"`
	InDemandDelay string `xml:"inDemandDelay,omitempty"`
	IdleDelay     string `xml:"idleDelay,omitempty"`
}

type launcherXML struct {
	Class         string `xml:"class,attr"`
	AgentCommand  string `xml:"agentCommand,omitempty"`
	Host          string `xml:"host,omitempty"`
	Port          string `xml:"port,omitempty"`
	Username      string `xml:"username,omitempty"`
	CredentialsID string `xml:"credentialsId,omitempty"`
	JVMOptions    string `xml:"jvmOptions,omitempty"`
}

type nodePropertiesXML struct {
	Env *envPropertyXML `xml:"hudson.slaves.EnvironmentVariablesNodeProperty"`
}

type envPropertyXML struct {
	EnvVars envVarsXML `xml:"envVars"`
}

type envVarsXML struct {
	Serialization string     `xml:"serialization,attr,omitempty"`
	TreeMap       treeMapXML `xml:"tree-map"`
}

type treeMapXML struct {
	Default *treeMapDefaultXML `xml:"default"`
	Size    int                `xml:"int"`
	Strings []string           `xml:"string"`
}

type treeMapDefaultXML struct {
	Comparator struct {
		Class string `xml:"class,attr"`
	} `xml:"comparator"`
}

// renderAgent encodes a desired agent as the node document submitted on
// create-node and update-node.
func renderAgent(a *model.Agent, jvmOptions string) ([]byte, error) {
	doc := slaveXML{
		Name:         a.Name,
		Description:  a.Description,
		RemoteFS:     a.RemoteFS,
		NumExecutors: strconv.Itoa(a.Executors),
		Mode:         strings.ToUpper(string(a.Mode)),
		Label:        strings.Join(a.SortedLabels(), " "),
		Launcher: launcherXML{
			Class: launcherClasses[a.Launcher.Type],
		},
		RetentionStrategy: retentionXML{
			Class: alwaysRetentionClass,
		},
	}

	switch a.Launcher.Type {
	case model.LauncherCommand:
		doc.Launcher.AgentCommand = a.Launcher.Command
	case model.LauncherSSH:
		doc.Launcher.Host = a.Launcher.Host
		if a.Launcher.Port != 0 {
			doc.Launcher.Port = strconv.Itoa(a.Launcher.Port)
		}
		doc.Launcher.Username = a.Launcher.Username
		doc.Launcher.CredentialsID = a.Launcher.Credential
		doc.Launcher.JVMOptions = jvmOptions
	}

	if a.Availability.Type == model.AvailabilityDemand {
		doc.RetentionStrategy = retentionXML{
			Class:         demandRetentionClass,
			InDemandDelay: strconv.Itoa(a.Availability.InDemandDelay),
			IdleDelay:     strconv.Itoa(a.Availability.IdleDelay),
		}
	}

	if len(a.Env) > 0 {
		keys := make([]string, 0, len(a.Env))
		for k := range a.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tm := treeMapXML{Default: &treeMapDefaultXML{}, Size: len(keys)}
		tm.Default.Comparator.Class = envComparatorClass
		for _, k := range keys {
			tm.Strings = append(tm.Strings, k, a.Env[k])
		}
		doc.NodeProperties.Env = &envPropertyXML{
			EnvVars: envVarsXML{Serialization: "custom", TreeMap: tm},
		}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render node %q: %w", a.Name, err)
	}
	return append([]byte(xml.Header), out...), nil
}

// parseAgent decodes a node document. Optional elements default to their
// zero value; a missing name is an error.
func parseAgent(raw string) (*model.CurrentState, error) {
	var doc slaveXML
	if err := xml.Unmarshal([]byte(stripDeclaration(raw)), &doc); err != nil {
		return nil, fmt.Errorf("malformed node document: %w", err)
	}
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return nil, fmt.Errorf("node document has no name")
	}

	state := &model.CurrentState{
		Present:     true,
		Name:        name,
		Description: doc.Description,
		RemoteFS:    strings.TrimSpace(doc.RemoteFS),
		Mode:        model.Mode(strings.ToLower(strings.TrimSpace(doc.Mode))),
		Labels:      mapset.NewSet[string](strings.Fields(doc.Label)...),
		Class:       doc.Launcher.Class,
		UserID:      strings.TrimSpace(doc.UserID),
		Raw:         raw,
	}

	var err error
	if state.Executors, err = optionalInt("numExecutors", doc.NumExecutors); err != nil {
		return nil, err
	}
	if state.Launcher, err = parseLauncher(doc.Launcher); err != nil {
		return nil, err
	}
	if state.Availability, err = parseRetention(doc.RetentionStrategy); err != nil {
		return nil, err
	}
	if doc.NodeProperties.Env != nil {
		state.Env = parseEnv(doc.NodeProperties.Env.EnvVars.TreeMap.Strings)
	}
	return state, nil
}

// stripDeclaration drops the leading <?xml ...?> declaration. Jenkins
// declares version 1.1, which encoding/xml refuses.
func stripDeclaration(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "<?xml") {
		return raw
	}
	if end := strings.Index(trimmed, "?>"); end >= 0 {
		return trimmed[end+2:]
	}
	return raw
}

func optionalInt(field, v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return n, nil
}

func parseLauncher(l launcherXML) (model.Launcher, error) {
	switch l.Class {
	case jnlpLauncherClass:
		return model.Launcher{Type: model.LauncherJNLP}, nil
	case commandLauncherClass:
		return model.Launcher{Type: model.LauncherCommand, Command: l.AgentCommand}, nil
	case sshLauncherClass:
		port, err := optionalInt("launcher port", l.Port)
		if err != nil {
			return model.Launcher{}, err
		}
		return model.Launcher{
			Type:       model.LauncherSSH,
			Host:       l.Host,
			Port:       port,
			Username:   l.Username,
			Credential: l.CredentialsID,
		}, nil
	}
	// Unknown or missing launcher classes are kept in CurrentState.Class only.
	return model.Launcher{}, nil
}

func parseRetention(r retentionXML) (model.Availability, error) {
	switch r.Class {
	case demandRetentionClass:
		inDemand, err := optionalInt("inDemandDelay", r.InDemandDelay)
		if err != nil {
			return model.Availability{}, err
		}
		idle, err := optionalInt("idleDelay", r.IdleDelay)
		if err != nil {
			return model.Availability{}, err
		}
		return model.Availability{Type: model.AvailabilityDemand, InDemandDelay: inDemand, IdleDelay: idle}, nil
	case alwaysRetentionClass:
		return model.Availability{Type: model.AvailabilityAlways}, nil
	}
	return model.Availability{}, nil
}

// parseEnv reads the key/value pairs of a serialized tree-map.
func parseEnv(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		env[pairs[i]] = pairs[i+1]
	}
	return env
}

type jobXML struct {
	XMLName     xml.Name
	Description string `xml:"description"`
	Disabled    string `xml:"disabled"`
}

// parseJob decodes a job config. The document carries no name, so the
// probed name is used.
func parseJob(name, raw string) (*model.CurrentState, error) {
	var doc jobXML
	if err := xml.Unmarshal([]byte(stripDeclaration(raw)), &doc); err != nil {
		return nil, fmt.Errorf("malformed job document: %w", err)
	}
	disabled := strings.TrimSpace(doc.Disabled)
	return &model.CurrentState{
		Present:     true,
		Name:        name,
		Description: doc.Description,
		Disabled:    disabled == "true",
		Class:       doc.XMLName.Local,
		Raw:         raw,
	}, nil
}
