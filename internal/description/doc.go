// Package description parses the XML documents an AVM router publishes
// about itself (device tree files like tr64desc.xml and per-service SCPD
// files) into the capability model used for all TR-064 calls.
//
// The model is a tree of Device → Service → Action → Argument. After all
// documents are attached, Model.Scan flattens the services of every device
// into a single name-indexed map; that index is the only structure
// consulted during calls.
//
// Parsing is forward compatible: unknown elements are ignored. Missing
// mandatory elements (service type, control URL, action name) fail with a
// description error. All types serialize cleanly with encoding/json and
// encoding/gob so the model can be cached on disk.
package description
