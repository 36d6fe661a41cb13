package soap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hausnet/fritzcore/internal/description"
	"github.com/hausnet/fritzcore/internal/fritzerr"
)

func testService() *description.Service {
	return &description.Service{
		ServiceType: "urn:dslforum-org:service:WLANConfiguration:1",
		ServiceID:   "urn:WLANConfiguration-com:serviceId:WLANConfiguration1",
		ControlURL:  "/upnp/control/wlanconfig1",
		Actions: map[string]*description.Action{
			"GetInfo": {
				Name: "GetInfo",
				Arguments: []*description.Argument{
					{Name: "NewEnable", Direction: "out", DataType: "boolean"},
					{Name: "NewSSID", Direction: "out", DataType: "string"},
					{Name: "NewChannel", Direction: "out", DataType: "ui1"},
				},
			},
			"SetEnable": {
				Name: "SetEnable",
				Arguments: []*description.Argument{
					{Name: "NewEnable", Direction: "in", DataType: "boolean"},
				},
			},
		},
	}
}

const getInfoResponse = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body><u:GetInfoResponse xmlns:u="urn:dslforum-org:service:WLANConfiguration:1">
<NewEnable>1</NewEnable><NewSSID>HomeNet</NewSSID><NewChannel>11</NewChannel>
</u:GetInfoResponse></s:Body></s:Envelope>`

const faultResponseTemplate = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body><s:Fault>
<faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>
<detail><UPnPError xmlns="urn:dslforum-org:control-1-0">
<errorCode>CODE</errorCode><errorDescription>DESCRIPTION</errorDescription>
</UPnPError></detail>
</s:Fault></s:Body></s:Envelope>`

func faultResponse(code, desc string) string {
	out := strings.Replace(faultResponseTemplate, "CODE", code, 1)
	return strings.Replace(out, "DESCRIPTION", desc, 1)
}

func TestExecute_DecodesOutputsByName(t *testing.T) {
	var gotSoapAction string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSoapAction = r.Header.Get("SOAPACTION")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(getInfoResponse))
	}))
	defer server.Close()

	engine := NewEngine(server.Client(), server.URL, false, nil)
	outputs, err := engine.Execute(context.Background(), testService(), "GetInfo", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if gotSoapAction != "urn:dslforum-org:service:WLANConfiguration:1#GetInfo" {
		t.Errorf("SOAPACTION = %q", gotSoapAction)
	}
	if !strings.Contains(gotBody, `<u:GetInfo xmlns:u="urn:dslforum-org:service:WLANConfiguration:1">`) {
		t.Errorf("body missing action element: %s", gotBody)
	}
	if outputs["NewEnable"] != true {
		t.Errorf("NewEnable = %v, want true", outputs["NewEnable"])
	}
	if outputs["NewSSID"] != "HomeNet" {
		t.Errorf("NewSSID = %v", outputs["NewSSID"])
	}
	if outputs["NewChannel"] != 11 {
		t.Errorf("NewChannel = %v, want 11", outputs["NewChannel"])
	}
}

func TestExecute_EncodesInputsInDeclaredOrder(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:SetEnableResponse xmlns:u="urn:dslforum-org:service:WLANConfiguration:1"></u:SetEnableResponse></s:Body></s:Envelope>`))
	}))
	defer server.Close()

	engine := NewEngine(server.Client(), server.URL, false, nil)
	outputs, err := engine.Execute(context.Background(), testService(), "SetEnable",
		map[string]any{"NewEnable": true})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(outputs) != 0 {
		t.Errorf("outputs = %v, want empty map", outputs)
	}
	if !strings.Contains(gotBody, "<NewEnable>1</NewEnable>") {
		t.Errorf("body missing encoded input: %s", gotBody)
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	engine := NewEngine(http.DefaultClient, "http://127.0.0.1:1", false, nil)
	_, err := engine.Execute(context.Background(), testService(), "NoSuchAction", nil)
	if !fritzerr.IsActionNotFound(err) {
		t.Errorf("err = %v, want action-not-found", err)
	}
}

func TestExecute_MissingInputFailsBeforeNetworkIO(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	engine := NewEngine(server.Client(), server.URL, false, nil)
	_, err := engine.Execute(context.Background(), testService(), "SetEnable", nil)
	if !fritzerr.IsArgument(err) {
		t.Errorf("err = %v, want argument error", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestExecute_UnknownInputStrictVsPermissive(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:SetEnableResponse xmlns:u="x"></u:SetEnableResponse></s:Body></s:Envelope>`))
	}))
	defer server.Close()

	args := map[string]any{"NewEnable": false, "NewBogus": 1}

	strict := NewEngine(server.Client(), server.URL, false, nil)
	if _, err := strict.Execute(context.Background(), testService(), "SetEnable", args); !fritzerr.IsArgument(err) {
		t.Errorf("strict err = %v, want argument error", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("strict mode sent %d requests, want 0", n)
	}

	permissive := NewEngine(server.Client(), server.URL, true, nil)
	if _, err := permissive.Execute(context.Background(), testService(), "SetEnable", args); err != nil {
		t.Errorf("permissive err = %v, want nil", err)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("permissive mode sent %d requests, want 1", n)
	}
}

func TestExecute_FaultCode401IsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(faultResponse("401", "Invalid Action")))
	}))
	defer server.Close()

	engine := NewEngine(server.Client(), server.URL, false, nil)
	_, err := engine.Execute(context.Background(), testService(), "GetInfo", nil)
	if !fritzerr.IsAuthorization(err) {
		t.Errorf("err = %v, want authorization", err)
	}
}

func TestExecute_UnknownFaultCodeKeepsCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(faultResponse("899", "vendor specific")))
	}))
	defer server.Close()

	engine := NewEngine(server.Client(), server.URL, false, nil)
	_, err := engine.Execute(context.Background(), testService(), "GetInfo", nil)
	var fe *fritzerr.Error
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want typed fault", err)
	}
	if fe.Kind != fritzerr.KindUnknown {
		t.Errorf("Kind = %v, want KindUnknown", fe.Kind)
	}
	if fe.Code != "899" {
		t.Errorf("Code = %q, want 899", fe.Code)
	}
	if fe.Message != "vendor specific" {
		t.Errorf("Message = %q", fe.Message)
	}
}

func TestExecute_HTMLUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("<html><body><h1>401 Unauthorized</h1></body></html>"))
	}))
	defer server.Close()

	engine := NewEngine(server.Client(), server.URL, false, nil)
	_, err := engine.Execute(context.Background(), testService(), "GetInfo", nil)
	if !fritzerr.IsAuthorization(err) {
		t.Errorf("err = %v, want authorization", err)
	}
}

func TestExecute_TransportErrorIsConnectivity(t *testing.T) {
	// Nothing listens on this port.
	engine := NewEngine(http.DefaultClient, "http://127.0.0.1:1", false, nil)
	_, err := engine.Execute(context.Background(), testService(), "GetInfo", nil)
	if !fritzerr.IsConnectivity(err) {
		t.Errorf("err = %v, want connectivity", err)
	}
}

func TestParseResponse_UndecodableValueKeptRaw(t *testing.T) {
	action := testService().Actions["GetInfo"]
	body := []byte(`<s:Envelope xmlns:s="x"><s:Body><u:GetInfoResponse xmlns:u="y">` +
		`<NewEnable>maybe</NewEnable><NewSSID>Net</NewSSID><NewChannel>11</NewChannel>` +
		`</u:GetInfoResponse></s:Body></s:Envelope>`)
	outputs := parseResponse(body, action)
	if outputs["NewEnable"] != "maybe" {
		t.Errorf("NewEnable = %v, want raw string", outputs["NewEnable"])
	}
	if outputs["NewChannel"] != 11 {
		t.Errorf("NewChannel = %v, want 11", outputs["NewChannel"])
	}
}
