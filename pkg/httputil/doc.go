// Package httputil provides the JSON response and route variable helpers
// shared by the HTTP middleware.
//
//	if id, ok, err := httputil.PathInt64(r, "team_id"); err != nil {
//		httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid team id")
//	}
//
// WriteError maps storage.ErrNotFound to 404, storage.ErrInvalidArgument to
// 400 and tenancy.ErrTenantUnresolved to 403. Anything else is a 500 whose
// message is not echoed.
package httputil
