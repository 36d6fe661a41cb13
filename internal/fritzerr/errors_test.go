package fritzerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromFaultCode_KnownCodes(t *testing.T) {
	tests := []struct {
		code string
		want Kind
	}{
		{"401", KindAuthorization},
		{"402", KindArgument},
		{"501", KindActionFailed},
		{"600", KindArgumentValue},
		{"603", KindOutOfMemory},
		{"606", KindAuthorization},
		{"713", KindArrayIndex},
		{"714", KindLookUp},
		{"801", KindArgumentStringTooShort},
		{"802", KindArgumentStringTooLong},
		{"803", KindArgumentCharacter},
		{"820", KindInternal},
	}
	for _, tt := range tests {
		err := FromFaultCode(tt.code, "description")
		if err.Kind != tt.want {
			t.Errorf("FromFaultCode(%q).Kind = %v, want %v", tt.code, err.Kind, tt.want)
		}
		if err.Code != tt.code {
			t.Errorf("FromFaultCode(%q).Code = %q", tt.code, err.Code)
		}
	}
}

func TestFromFaultCode_UnknownCodeKeepsRawCode(t *testing.T) {
	err := FromFaultCode("999", "something new")
	if err.Kind != KindUnknown {
		t.Errorf("Kind = %v, want KindUnknown", err.Kind)
	}
	if err.Code != "999" {
		t.Errorf("Code = %q, want %q", err.Code, "999")
	}
	if err.Message != "something new" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"service not found", New(KindServiceNotFound, "x"), IsServiceNotFound, true},
		{"not found family", New(KindActionNotFound, "x"), IsNotFound, true},
		{"argument subtype", FromFaultCode("801", "too short"), IsArgument, true},
		{"lookup counts as argument", FromFaultCode("714", "no entry"), IsArgument, true},
		{"authorization", FromFaultCode("606", "denied"), IsAuthorization, true},
		{"internal family", FromFaultCode("501", "failed"), IsInternal, true},
		{"connectivity", Wrap(KindConnectivity, errors.New("refused"), "dial"), IsConnectivity, true},
		{"plain error is nothing", errors.New("plain"), IsArgument, false},
		{"kind mismatch", New(KindCache, "stale"), IsAuthorization, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapsThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindConnectivity, cause, "dial router")
	wrapped := fmt.Errorf("connecting: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the transport cause")
	}
	if !IsConnectivity(wrapped) {
		t.Error("IsConnectivity should classify through fmt wrapping")
	}
}

func TestErrorMessageFormat(t *testing.T) {
	err := FromFaultCode("402", "invalid argument")
	want := "fritz: argument (code 402): invalid argument"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
