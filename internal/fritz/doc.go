// Package fritz is the connection facade of fritzcore. A Connection owns
// one pooled HTTP session to the router, discovers its capability model
// (from the cache or live over tr64desc.xml and igddesc.xml) and exposes
// the two command surfaces:
//
//   - CallAction for the TR-064 SOAP interface
//   - CallHTTP for the AHA home automation interface
//
// Service names are normalized on lookup, so "WLANConfiguration",
// "WLANConfiguration1" and "WLANConfiguration:1" all address the same
// service. All failures carry a fritzerr kind; callers branch with the
// fritzerr predicates instead of string matching.
package fritz
