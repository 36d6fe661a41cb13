package description

import (
	"strings"

	"github.com/hausnet/fritzcore/internal/fritzerr"
)

// Argument directions as declared in SCPD documents.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Argument is one typed parameter of an Action. The state-variable
// constraints referenced by the SCPD are resolved into the argument when
// the SCPD is attached to its service. Immutable once parsed.
type Argument struct {
	Name          string
	Direction     string
	StateVariable string

	// Resolved from the related state variable.
	DataType      string
	DefaultValue  string
	AllowedValues []string
	Minimum       string
	Maximum       string
}

// Action is a single invocable operation with its arguments in document
// order. Order matters for building request bodies; response values are
// still paired by element name, never by position.
type Action struct {
	Name      string
	Arguments []*Argument
}

// Argument returns the named argument or nil. Actions carry few arguments,
// a linear scan keeps the type free of caches that would not survive
// deserialization.
func (a *Action) Argument(name string) *Argument {
	for _, arg := range a.Arguments {
		if arg.Name == name {
			return arg
		}
	}
	return nil
}

// In returns the input arguments in declared order.
func (a *Action) In() []*Argument {
	return a.byDirection(DirectionIn)
}

// Out returns the output arguments in declared order.
func (a *Action) Out() []*Argument {
	return a.byDirection(DirectionOut)
}

func (a *Action) byDirection(direction string) []*Argument {
	args := make([]*Argument, 0, len(a.Arguments))
	for _, arg := range a.Arguments {
		if arg.Direction == direction {
			args = append(args, arg)
		}
	}
	return args
}

// Service is one functional area of the router (WLAN, WAN connection, ...).
// The URLs are router-relative; the transport joins them with the base
// address of the connection.
type Service struct {
	ServiceType string
	ServiceID   string
	ControlURL  string
	EventSubURL string
	SCPDURL     string

	// Actions is populated by AttachSCPD.
	Actions map[string]*Action
}

// Name returns the short service name: the tail of the serviceId, e.g.
// "WANIPConnection1" from "urn:WANIPConnection-com:serviceId:WANIPConnection1".
func (s *Service) Name() string {
	if s.ServiceID == "" {
		return ""
	}
	parts := strings.Split(s.ServiceID, ":")
	return parts[len(parts)-1]
}

// AttachSCPD resolves the parsed SCPD into the service: actions become
// addressable by name and every argument inherits datatype and constraints
// from its related state variable. A dangling state-variable reference is
// a description error.
func (s *Service) AttachSCPD(scpd *SCPD) error {
	variables := make(map[string]*StateVariable, len(scpd.StateVariables))
	for _, sv := range scpd.StateVariables {
		variables[sv.Name] = sv
	}
	s.Actions = make(map[string]*Action, len(scpd.Actions))
	for _, action := range scpd.Actions {
		for _, arg := range action.Arguments {
			sv, ok := variables[arg.StateVariable]
			if !ok {
				return fritzerr.New(fritzerr.KindDescription,
					"service %s: action %s: argument %s references unknown state variable %q",
					s.Name(), action.Name, arg.Name, arg.StateVariable)
			}
			arg.DataType = strings.ToLower(sv.DataType)
			arg.DefaultValue = sv.DefaultValue
			arg.AllowedValues = sv.AllowedValues
			arg.Minimum = sv.Range.Minimum
			arg.Maximum = sv.Range.Maximum
		}
		s.Actions[action.Name] = action
	}
	return nil
}

// Device is a node in the device tree: the root corresponds to the
// physical router, nested devices are embedded logical sub-devices
// (LAN, WAN).
type Device struct {
	DeviceType       string
	FriendlyName     string
	Manufacturer     string
	ModelName        string
	ModelNumber      string
	ModelDescription string
	UDN              string
	PresentationURL  string

	Services []*Service
	Devices  []*Device
}

// ServicesByName collects the services of the device and all sub-devices
// keyed by short name. Sub-device entries win on duplicates, matching the
// merge order of the original description documents.
func (d *Device) ServicesByName() map[string]*Service {
	services := make(map[string]*Service)
	for _, s := range d.Services {
		services[s.Name()] = s
	}
	for _, sub := range d.Devices {
		for name, s := range sub.ServicesByName() {
			services[name] = s
		}
	}
	return services
}

// SpecVersion is the UPnP schema version of a description document.
type SpecVersion struct {
	Major string
	Minor string
}

// SystemVersion describes the installed FritzOS. Only the tr64desc
// document carries it.
type SystemVersion struct {
	HW          string
	Major       string
	Minor       string
	Patch       string
	Buildnumber string
	Display     string
}

// Version returns the OS version as "Minor.Patch" (the form reported by
// the router web interface) or "" if unknown.
func (v SystemVersion) Version() string {
	if v.Minor != "" && v.Patch != "" {
		return v.Minor + "." + v.Patch
	}
	return ""
}

// Description is one parsed device-tree document (tr64desc.xml or
// igddesc.xml).
type Description struct {
	Spec   SpecVersion
	System SystemVersion
	Device *Device
}

// Model is the complete discovered capability model: the parsed
// description documents plus the flattened service index. Built once per
// session, read-only afterwards.
type Model struct {
	Descriptions []*Description

	// Services is the flattened short-name index, populated by Scan.
	Services map[string]*Service
}

// Scan flattens all device trees into the service index. Must be called
// after every description is added and before the model is used for
// lookups. Later descriptions win on duplicate names.
func (m *Model) Scan() {
	m.Services = make(map[string]*Service)
	for _, desc := range m.Descriptions {
		if desc.Device == nil {
			continue
		}
		for name, s := range desc.Device.ServicesByName() {
			m.Services[name] = s
		}
	}
}

// ModelName returns the router model from the first description, the name
// of the physical box itself.
func (m *Model) ModelName() string {
	if len(m.Descriptions) == 0 || m.Descriptions[0].Device == nil {
		return ""
	}
	return m.Descriptions[0].Device.ModelName
}

// SystemVersion returns the installed FritzOS version like "7.29", or ""
// if no description carries system information.
func (m *Model) SystemVersion() string {
	for _, desc := range m.Descriptions {
		if v := desc.System.Version(); v != "" {
			return v
		}
	}
	return ""
}
