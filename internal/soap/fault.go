package soap

import (
	"encoding/xml"
	"net/http"
	"regexp"
	"strings"

	"github.com/hausnet/fritzcore/internal/fritzerr"
)

// soapFault maps the UPnPError detail of a fault response. Tags use local
// names so the SOAP and control namespaces both match.
type soapFault struct {
	XMLName     xml.Name
	Code        string `xml:"Body>Fault>detail>UPnPError>errorCode"`
	Description string `xml:"Body>Fault>detail>UPnPError>errorDescription"`
}

var tagPattern = regexp.MustCompile(`<.*?>`)

// decodeFailure turns a non-200 response into a typed error. XML bodies
// carry a SOAP fault with the AVM error code; HTML bodies appear on
// authentication problems and are reduced to their text.
func decodeFailure(status int, body []byte) error {
	text := string(body)
	if isHTML(text) {
		message := "unable to perform operation: " + stripTags(text)
		if status == http.StatusUnauthorized {
			return fritzerr.New(fritzerr.KindAuthorization, "%s", message)
		}
		return fritzerr.New(fritzerr.KindUnknown, "%s", message)
	}

	var fault soapFault
	if err := xml.Unmarshal(body, &fault); err != nil || fault.Code == "" {
		if status == http.StatusUnauthorized {
			return fritzerr.New(fritzerr.KindAuthorization, "status %d: %s", status, text)
		}
		return fritzerr.New(fritzerr.KindUnknown, "status %d: %s", status, text)
	}
	return fritzerr.FromFaultCode(fault.Code, fault.Description)
}

func isHTML(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "<html")
}

func stripTags(text string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(text, " ")), " ")
}
