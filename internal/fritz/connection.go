package fritz

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/icholy/digest"

	"github.com/hausnet/fritzcore/internal/ahahttp"
	"github.com/hausnet/fritzcore/internal/cache"
	"github.com/hausnet/fritzcore/internal/description"
	"github.com/hausnet/fritzcore/internal/fritzerr"
	"github.com/hausnet/fritzcore/internal/soap"
)

// Well-known router documents. The description files live on the TR-064
// port, the box info file on the plain web port.
const (
	tr64DescFile = "tr64desc.xml"
	igdDescFile  = "igddesc.xml"
	boxinfoFile  = "jason_boxinfo.xml"
)

// accessDisabledHint names the router setting that blocks TR-064 when an
// otherwise reachable box refuses its description document.
const accessDisabledHint = "unable to retrieve the device description. " +
	"Check: Home Network -> Network -> Network Settings " +
	"for 'Allow access for applications'"

// usernameRequiredVersion is the FritzOS release since which AVM expects a
// concrete username instead of the historic default user.
const usernameRequiredVersion = 7.24

// Connection is one established session with a router: the shared HTTP
// pool, the discovered capability model and the command engines on top of
// it. Create it with Connect.
type Connection struct {
	client    *http.Client
	transport *http.Transport

	// address is scheme://host as given, origin additionally carries the
	// TR-064 port. The AHA interface and the box info file live on the
	// address, the SOAP and description endpoints on the origin.
	address  string
	origin   string
	username string
	password string

	logger *slog.Logger

	model  *description.Model
	engine *soap.Engine
	aha    *ahahttp.Client

	boxinfoMu sync.Mutex
	boxinfo   map[string]string
}

// Connect establishes a session with the router described by cfg: it
// builds the pooled transport, loads the capability model from the cache
// or the live box and wires the SOAP and AHA engines onto the shared
// session.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()

	address := setProtocol(cfg.Address, cfg.UseTLS)
	origin := address
	if !hasPort(address) {
		origin = fmt.Sprintf("%s:%d", address, cfg.Port)
	}

	transport := &http.Transport{
		MaxIdleConns:        poolConnections,
		MaxIdleConnsPerHost: poolConnections,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
	}
	client := &http.Client{Timeout: cfg.Timeout, Transport: transport}
	if cfg.Password != "" {
		client.Transport = &digest.Transport{
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: transport,
		}
	}

	conn := &Connection{
		client:    client,
		transport: transport,
		address:   address,
		origin:    origin,
		username:  cfg.Username,
		password:  cfg.Password,
		logger:    cfg.Logger,
	}

	if err := conn.loadModel(ctx, cfg); err != nil {
		return nil, err
	}
	conn.engine = soap.NewEngine(client, origin, cfg.Permissive, cfg.Logger)
	conn.aha = ahahttp.NewClient(client, address, conn.username, conn.password, cfg.Logger)

	conn.resolveUser(ctx)
	return conn, nil
}

// CallAction executes the named action of the named service and returns
// the declared output arguments. The service name is normalized first;
// an unknown service or action fails before any request is sent.
func (c *Connection) CallAction(ctx context.Context, serviceName, actionName string, args map[string]any) (map[string]any, error) {
	name := NormalizeServiceName(serviceName)
	service, ok := c.model.Services[name]
	if !ok {
		return nil, fritzerr.New(fritzerr.KindServiceNotFound, "unknown service %q", name)
	}
	return c.engine.Execute(ctx, service, actionName, args)
}

// CallHTTP executes an AHA command with an optional device identifier
// (AIN) and extra query parameters. Session handling is transparent; the
// response is returned as delivered by the router.
func (c *Connection) CallHTTP(ctx context.Context, command, identifier string, extra map[string]string) (*ahahttp.Result, error) {
	return c.aha.Execute(ctx, command, identifier, extra)
}

// Reconnect terminates the WAN connection; the provider assigns a new
// external IP on re-establishment.
func (c *Connection) Reconnect(ctx context.Context) error {
	_, err := c.CallAction(ctx, "WANIPConn1", "ForceTermination", nil)
	return err
}

// Reboot restarts the router.
func (c *Connection) Reboot(ctx context.Context) error {
	_, err := c.CallAction(ctx, "DeviceConfig1", "Reboot", nil)
	return err
}

// UpdateCheck returns the box identity document (model name, installed
// version, hardware revision) from jason_boxinfo.xml. The result is
// fetched once and cached for the lifetime of the connection.
func (c *Connection) UpdateCheck(ctx context.Context) (map[string]string, error) {
	c.boxinfoMu.Lock()
	defer c.boxinfoMu.Unlock()
	if c.boxinfo != nil {
		return c.boxinfo, nil
	}
	data, err := c.fetch(ctx, c.address+"/"+boxinfoFile)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err, "retrieving box info")
	}
	info, err := parseBoxInfo(data)
	if err != nil {
		return nil, err
	}
	c.boxinfo = info
	return info, nil
}

// ModelName returns the router model, e.g. "FRITZ!Box 7590".
func (c *Connection) ModelName() string {
	return c.model.ModelName()
}

// SystemVersion returns the installed FritzOS version like "7.29", or ""
// if unknown.
func (c *Connection) SystemVersion() string {
	return c.model.SystemVersion()
}

// Username returns the effective TR-064 user, which may differ from the
// configured one after the last-user lookup on newer FritzOS releases.
func (c *Connection) Username() string {
	return c.username
}

// Services returns the discovered service index keyed by normalized short
// name. The map is the live index, callers must not mutate it.
func (c *Connection) Services() map[string]*description.Service {
	return c.model.Services
}

// String renders the connected box for logs and the inspection CLI.
func (c *Connection) String() string {
	return fmt.Sprintf("%s at %s (FRITZ!OS %s)", c.ModelName(), c.address, c.SystemVersion())
}

// loadModel provides the capability model, preferring a verified cache
// entry over live discovery. Cache write failures are logged, never
// fatal.
func (c *Connection) loadModel(ctx context.Context, cfg Config) error {
	if cfg.Cache == nil {
		model, err := c.discover(ctx)
		if err != nil {
			return err
		}
		c.model = model
		return nil
	}

	identity := cache.Identity(c.address)
	entry, err := cfg.Cache.Load(identity)
	if err == nil {
		if !cfg.VerifyCache || c.verifyEntry(ctx, entry) {
			c.logger.Debug("capability model loaded from cache", "identity", identity)
			c.model = entry.Model
			return nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("cache read failed, discovering live", "error", err)
	}

	model, err := c.discover(ctx)
	if err != nil {
		return err
	}
	c.model = model

	entry = &cache.Entry{Fingerprint: c.fingerprint(ctx), Model: model}
	if err := cfg.Cache.Save(identity, entry); err != nil {
		c.logger.Warn("writing discovery cache", "identity", identity, "error", err)
	}
	return nil
}

// verifyEntry checks a cache hit against the live box identity. Any
// failure to verify counts as stale, so an unreachable or swapped box
// falls through to live discovery.
func (c *Connection) verifyEntry(ctx context.Context, entry *cache.Entry) bool {
	info, err := c.UpdateCheck(ctx)
	if err != nil {
		c.logger.Warn("cache verification probe failed", "error", err)
		return false
	}
	if !entry.Fingerprint.Matches(info["Name"], info["Version"]) {
		c.logger.Info("cached model is stale, rediscovering",
			"cached_model", entry.Fingerprint.ModelName,
			"cached_version", entry.Fingerprint.SystemVersion,
			"live_model", info["Name"],
			"live_version", info["Version"])
		return false
	}
	return true
}

// fingerprint captures the live box identity for a fresh cache entry.
// When the identity probe fails the description values stand in; the next
// verification then rediscovers once and rewrites the entry.
func (c *Connection) fingerprint(ctx context.Context) cache.Fingerprint {
	fp := cache.Fingerprint{
		Address:       c.address,
		ModelName:     c.model.ModelName(),
		SystemVersion: c.model.SystemVersion(),
		FormatVersion: cache.FormatVersion,
	}
	if info, err := c.UpdateCheck(ctx); err == nil {
		fp.ModelName = info["Name"]
		fp.SystemVersion = info["Version"]
	}
	return fp
}

// discover loads the capability model from the live box: the mandatory
// TR-064 device tree, the optional IGD tree, then every SCPD document.
func (c *Connection) discover(ctx context.Context) (*description.Model, error) {
	model := &description.Model{}

	data, err := c.fetch(ctx, c.origin+"/"+tr64DescFile)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err, "%s", accessDisabledHint)
	}
	desc, err := description.Parse(data)
	if err != nil {
		return nil, err
	}
	model.Descriptions = append(model.Descriptions, desc)

	// The IGD tree is absent on boxes without an internet connection;
	// skip it silently.
	if data, err := c.fetch(ctx, c.origin+"/"+igdDescFile); err == nil {
		if desc, err := description.Parse(data); err == nil {
			model.Descriptions = append(model.Descriptions, desc)
		}
	}

	start := time.Now()
	for _, desc := range model.Descriptions {
		if err := c.attachSCPDs(ctx, desc.Device); err != nil {
			return nil, err
		}
	}
	model.Scan()
	c.logger.Debug("live discovery complete",
		"services", len(model.Services), "elapsed", time.Since(start))
	return model, nil
}

// attachSCPDs fetches and attaches the SCPD of every service in the
// device tree, sub-devices included.
func (c *Connection) attachSCPDs(ctx context.Context, device *description.Device) error {
	if device == nil {
		return nil
	}
	for _, service := range device.Services {
		data, err := c.fetch(ctx, c.origin+service.SCPDURL)
		if err != nil {
			return fritzerr.Wrap(fritzerr.KindDescription, err,
				"fetching scpd for service %q", service.Name())
		}
		scpd, err := description.ParseSCPD(data)
		if err != nil {
			return err
		}
		if err := service.AttachSCPD(scpd); err != nil {
			return err
		}
	}
	for _, sub := range device.Devices {
		if err := c.attachSCPDs(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// resolveUser swaps the historic default user for the last logged-in one,
// the way AVM recommends for FritzOS 7.24 and later. Best effort: a box
// that cannot answer the user list keeps the configured user.
func (c *Connection) resolveUser(ctx context.Context) {
	if c.password == "" || c.username != DefaultUsername {
		return
	}
	version, err := strconv.ParseFloat(c.SystemVersion(), 64)
	if err != nil || version < usernameRequiredVersion {
		return
	}
	result, err := c.CallAction(ctx, "LANConfigSecurity1", "X_AVM-DE_GetUserList", nil)
	if err != nil {
		c.logger.Debug("user list not available", "error", err)
		return
	}
	list, _ := result["NewX_AVM-DE_UserList"].(string)
	lastUser := lastLoggedInUser(list)
	if lastUser == "" || lastUser == c.username {
		return
	}
	c.logger.Debug("switching to last logged-in user", "user", lastUser)
	c.username = lastUser
	c.client.Transport = &digest.Transport{
		Username:  lastUser,
		Password:  c.password,
		Transport: c.transport,
	}
	c.aha = ahahttp.NewClient(c.client, c.address, lastUser, c.password, c.logger)
}

// lastLoggedInUser extracts the username marked last_user="1" from the
// list returned by X_AVM-DE_GetUserList.
func lastLoggedInUser(list string) string {
	var parsed struct {
		Users []struct {
			LastUser string `xml:"last_user,attr"`
			Name     string `xml:",chardata"`
		} `xml:"Username"`
	}
	if err := xml.Unmarshal([]byte(list), &parsed); err != nil {
		return ""
	}
	for _, user := range parsed.Users {
		if user.LastUser == "1" {
			return strings.TrimSpace(user.Name)
		}
	}
	return ""
}

// fetch retrieves one router document over the shared session.
func (c *Connection) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: http status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseBoxInfo maps the direct children of the box info root element to
// their character data, dropping the vendor namespace prefix.
func parseBoxInfo(data []byte) (map[string]string, error) {
	info := make(map[string]string)
	decoder := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	current := ""
	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fritzerr.Wrap(fritzerr.KindDescription, err, "parsing box info")
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 && current != "" {
				info[current] = text.String()
				current = ""
			}
			depth--
		}
	}
	return info, nil
}
