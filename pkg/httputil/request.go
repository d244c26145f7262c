package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// PathInt64 parses an int64 route variable. ok is false when the route has
// no such variable.
func PathInt64(r *http.Request, key string) (val int64, ok bool, err error) {
	str, ok := mux.Vars(r)[key]
	if !ok {
		return 0, false, nil
	}
	val, err = strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, true, nil
}

// PathString returns a route variable and whether the route has it
func PathString(r *http.Request, key string) (string, bool) {
	str, ok := mux.Vars(r)[key]
	return str, ok
}
