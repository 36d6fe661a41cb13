package description

import (
	"encoding/xml"

	"github.com/hausnet/fritzcore/internal/fritzerr"
)

// The xml* types mirror the document structure. Struct tags use local
// names only, so documents parse regardless of their default namespace and
// unknown elements are skipped, which keeps the parser forward compatible.

type xmlDescription struct {
	XMLName       xml.Name          `xml:"root"`
	SpecVersion   xmlSpecVersion    `xml:"specVersion"`
	SystemVersion xmlSystemVersion  `xml:"systemVersion"`
	Device        *xmlDevice        `xml:"device"`
}

type xmlSpecVersion struct {
	Major string `xml:"major"`
	Minor string `xml:"minor"`
}

type xmlSystemVersion struct {
	HW          string `xml:"HW"`
	Major       string `xml:"Major"`
	Minor       string `xml:"Minor"`
	Patch       string `xml:"Patch"`
	Buildnumber string `xml:"Buildnumber"`
	Display     string `xml:"Display"`
}

type xmlDevice struct {
	DeviceType       string       `xml:"deviceType"`
	FriendlyName     string       `xml:"friendlyName"`
	Manufacturer     string       `xml:"manufacturer"`
	ModelName        string       `xml:"modelName"`
	ModelNumber      string       `xml:"modelNumber"`
	ModelDescription string       `xml:"modelDescription"`
	UDN              string       `xml:"UDN"`
	PresentationURL  string       `xml:"presentationURL"`
	Services         []xmlService `xml:"serviceList>service"`
	Devices          []*xmlDevice `xml:"deviceList>device"`
}

type xmlService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
	SCPDURL     string `xml:"SCPDURL"`
}

type xmlSCPD struct {
	XMLName        xml.Name           `xml:"scpd"`
	Actions        []xmlAction        `xml:"actionList>action"`
	StateVariables []xmlStateVariable `xml:"serviceStateTable>stateVariable"`
}

type xmlAction struct {
	Name      string        `xml:"name"`
	Arguments []xmlArgument `xml:"argumentList>argument"`
}

type xmlArgument struct {
	Name                 string `xml:"name"`
	Direction            string `xml:"direction"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

type xmlStateVariable struct {
	Name          string        `xml:"name"`
	DataType      string        `xml:"dataType"`
	DefaultValue  string        `xml:"defaultValue"`
	AllowedValues []string      `xml:"allowedValueList>allowedValue"`
	Range         xmlValueRange `xml:"allowedValueRange"`
}

type xmlValueRange struct {
	Minimum string `xml:"minimum"`
	Maximum string `xml:"maximum"`
	Step    string `xml:"step"`
}

// SCPD is a parsed service description document: the actions a service
// offers and the state variables declaring their datatypes.
type SCPD struct {
	Actions        []*Action
	StateVariables []*StateVariable
}

// StateVariable declares the datatype and constraints an argument refers
// to via its relatedStateVariable element.
type StateVariable struct {
	Name          string
	DataType      string
	DefaultValue  string
	AllowedValues []string
	Range         ValueRange
}

// ValueRange is the optional min/max/step constraint of a state variable.
// Values stay strings; the router is the source of truth for ranges.
type ValueRange struct {
	Minimum string
	Maximum string
	Step    string
}

// Parse turns the raw bytes of a device-tree document (tr64desc.xml,
// igddesc.xml) into a Description. Fails with a description error when the
// document is not well-formed or a service lacks its mandatory elements.
func Parse(data []byte) (*Description, error) {
	var doc xmlDescription
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindDescription, err, "parsing device description")
	}
	if doc.Device == nil {
		return nil, fritzerr.New(fritzerr.KindDescription, "device description without root device")
	}
	device, err := convertDevice(doc.Device)
	if err != nil {
		return nil, err
	}
	return &Description{
		Spec: SpecVersion(doc.SpecVersion),
		System: SystemVersion{
			HW:          doc.SystemVersion.HW,
			Major:       doc.SystemVersion.Major,
			Minor:       doc.SystemVersion.Minor,
			Patch:       doc.SystemVersion.Patch,
			Buildnumber: doc.SystemVersion.Buildnumber,
			Display:     doc.SystemVersion.Display,
		},
		Device: device,
	}, nil
}

func convertDevice(raw *xmlDevice) (*Device, error) {
	device := &Device{
		DeviceType:       raw.DeviceType,
		FriendlyName:     raw.FriendlyName,
		Manufacturer:     raw.Manufacturer,
		ModelName:        raw.ModelName,
		ModelNumber:      raw.ModelNumber,
		ModelDescription: raw.ModelDescription,
		UDN:              raw.UDN,
		PresentationURL:  raw.PresentationURL,
	}
	for _, rawService := range raw.Services {
		service, err := convertService(rawService)
		if err != nil {
			return nil, err
		}
		device.Services = append(device.Services, service)
	}
	for _, rawSub := range raw.Devices {
		sub, err := convertDevice(rawSub)
		if err != nil {
			return nil, err
		}
		device.Devices = append(device.Devices, sub)
	}
	return device, nil
}

func convertService(raw xmlService) (*Service, error) {
	switch {
	case raw.ServiceType == "":
		return nil, fritzerr.New(fritzerr.KindDescription,
			"service %q without serviceType", raw.ServiceID)
	case raw.ControlURL == "":
		return nil, fritzerr.New(fritzerr.KindDescription,
			"service %q without controlURL", raw.ServiceID)
	case raw.SCPDURL == "":
		return nil, fritzerr.New(fritzerr.KindDescription,
			"service %q without SCPDURL", raw.ServiceID)
	}
	return &Service{
		ServiceType: raw.ServiceType,
		ServiceID:   raw.ServiceID,
		ControlURL:  raw.ControlURL,
		EventSubURL: raw.EventSubURL,
		SCPDURL:     raw.SCPDURL,
	}, nil
}

// ParseSCPD turns the raw bytes of a service description document into an
// SCPD. Actions without a name fail with a description error.
func ParseSCPD(data []byte) (*SCPD, error) {
	var doc xmlSCPD
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindDescription, err, "parsing scpd document")
	}
	scpd := &SCPD{}
	for _, rawAction := range doc.Actions {
		if rawAction.Name == "" {
			return nil, fritzerr.New(fritzerr.KindDescription, "scpd action without name")
		}
		action := &Action{Name: rawAction.Name}
		for _, rawArg := range rawAction.Arguments {
			action.Arguments = append(action.Arguments, &Argument{
				Name:          rawArg.Name,
				Direction:     rawArg.Direction,
				StateVariable: rawArg.RelatedStateVariable,
			})
		}
		scpd.Actions = append(scpd.Actions, action)
	}
	for _, rawVar := range doc.StateVariables {
		scpd.StateVariables = append(scpd.StateVariables, &StateVariable{
			Name:          rawVar.Name,
			DataType:      rawVar.DataType,
			DefaultValue:  rawVar.DefaultValue,
			AllowedValues: rawVar.AllowedValues,
			Range:         ValueRange(rawVar.Range),
		})
	}
	return scpd, nil
}
