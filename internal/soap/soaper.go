package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hausnet/fritzcore/internal/description"
	"github.com/hausnet/fritzcore/internal/fritzerr"
)

const (
	envelopeHeader = `<?xml version="1.0" encoding="utf-8"?>` +
		`<s:Envelope s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"` +
		` xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`
	envelopeFooter = `</s:Body></s:Envelope>`

	contentType = `text/xml; charset="utf-8"`
)

// Engine performs authenticated SOAP calls against the router. It holds no
// per-call state; the http.Client is the pooled session owned by the
// connection facade, shared with description fetching and the cache probe.
type Engine struct {
	client *http.Client
	origin string // scheme://host:port, control URLs are router-relative

	// permissive drops unknown input arguments instead of rejecting them.
	permissive bool

	logger *slog.Logger
}

// NewEngine creates a call engine on top of the shared transport session.
// origin is the router base like "http://192.168.178.1:49000". When
// permissive is set, extraneous input keys are dropped instead of raising
// an argument error; missing declared inputs always fail.
func NewEngine(client *http.Client, origin string, permissive bool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{client: client, origin: origin, permissive: permissive, logger: logger}
}

// Execute invokes the named action of the service with the given inputs
// and returns the declared outputs as a name-to-value map. Validation
// failures (unknown action, missing or extraneous inputs) are raised
// before any network I/O.
func (e *Engine) Execute(ctx context.Context, service *description.Service, actionName string, args map[string]any) (map[string]any, error) {
	action, ok := service.Actions[actionName]
	if !ok {
		return nil, fritzerr.New(fritzerr.KindActionNotFound,
			"unknown action %q on service %q", actionName, service.Name())
	}

	inputs, err := e.validateInputs(service, action, args)
	if err != nil {
		return nil, err
	}

	envelope := buildEnvelope(service.ServiceType, action, inputs)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.origin+service.ControlURL, strings.NewReader(envelope))
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err, "building soap request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("SOAPACTION", service.ServiceType+"#"+action.Name)

	e.logger.Debug("soap request",
		"service", service.Name(), "action", action.Name, "url", req.URL.String())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err,
			"posting to %q", service.ControlURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err, "reading soap response")
	}
	e.logger.Debug("soap response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, decodeFailure(resp.StatusCode, body)
	}
	return parseResponse(body, action), nil
}

// validateInputs checks the caller-supplied arguments against the declared
// input arguments and returns the encoded values keyed by argument name.
func (e *Engine) validateInputs(service *description.Service, action *description.Action, args map[string]any) (map[string]string, error) {
	declared := action.In()
	inputs := make(map[string]string, len(declared))
	for _, arg := range declared {
		value, ok := args[arg.Name]
		if !ok {
			return nil, fritzerr.New(fritzerr.KindArgument,
				"action %s.%s: missing input argument %q",
				service.Name(), action.Name, arg.Name)
		}
		inputs[arg.Name] = Encode(value)
	}
	for name := range args {
		arg := action.Argument(name)
		if arg != nil && arg.Direction == description.DirectionIn {
			continue
		}
		if e.permissive {
			e.logger.Debug("dropping unknown input argument",
				"service", service.Name(), "action", action.Name, "argument", name)
			continue
		}
		return nil, fritzerr.New(fritzerr.KindArgument,
			"action %s.%s: unknown input argument %q",
			service.Name(), action.Name, name)
	}
	return inputs, nil
}

// buildEnvelope renders the request envelope with one child element per
// input argument in the declared order.
func buildEnvelope(serviceType string, action *description.Action, inputs map[string]string) string {
	var b bytes.Buffer
	b.WriteString(envelopeHeader)
	fmt.Fprintf(&b, `<u:%s xmlns:u="%s">`, action.Name, serviceType)
	for _, arg := range action.In() {
		fmt.Fprintf(&b, "<%s>%s</%s>", arg.Name, inputs[arg.Name], arg.Name)
	}
	fmt.Fprintf(&b, "</u:%s>", action.Name)
	b.WriteString(envelopeFooter)
	return b.String()
}

// parseResponse extracts one value per declared output argument, paired
// strictly by element name. Arguments without a matching element are
// omitted; values failing datatype coercion keep their raw string so one
// non-conforming field does not void the whole call.
func parseResponse(body []byte, action *description.Action) map[string]any {
	elements := collectElements(body)
	result := make(map[string]any)
	for _, arg := range action.Out() {
		raw, ok := elements[arg.Name]
		if !ok {
			continue
		}
		value, err := Decode(raw, arg.DataType)
		if err != nil {
			// Tolerate partial router non-conformance: return as is.
			result[arg.Name] = raw
			continue
		}
		result[arg.Name] = value
	}
	return result
}

// collectElements walks the response and maps each element local name to
// its character data. Element names are unique within a response body, so
// a flat map suffices.
func collectElements(body []byte) map[string]string {
	elements := make(map[string]string)
	decoder := xml.NewDecoder(bytes.NewReader(body))
	var current string
	for {
		token, err := decoder.Token()
		if err != nil {
			return elements
		}
		switch t := token.(type) {
		case xml.StartElement:
			current = t.Name.Local
			elements[current] = ""
		case xml.CharData:
			if current != "" {
				elements[current] += string(t)
			}
		case xml.EndElement:
			current = ""
		}
	}
}
