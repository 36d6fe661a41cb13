// Package fritzerr defines the error taxonomy shared by all fritzcore
// packages.
//
// Instead of a hierarchy of error types there is a single Error struct
// carrying a Kind discriminant plus the router-reported fault code and
// description. Callers classify errors with errors.As plus the Kind, or
// with the predicate helpers:
//
//	_, err := conn.CallAction(ctx, "WLANConfiguration", "GetInfo", nil)
//	if fritzerr.IsAuthorization(err) {
//	    // wrong or missing credentials
//	}
//
// The AVM fault-code table maps router SOAP faults to kinds. Codes not in
// the table still produce a typed Error (KindUnknown) retaining the raw
// code string for diagnostics.
package fritzerr
