package rest

import (
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/plcpack/pkg/protocol"
)

// API paths of the REST catalog.
const (
	PathCatalog  = "/api/v1/catalog"
	PathResolve  = "/api/v1/resolve"
	PathVersions = "/api/v1/versions"
	PathDownload = "/api/v1/download/"
	PathLogin    = "/api/v1/login"
	PathPackages = "/api/v1/packages"
)

// Query parameters.
const (
	ParamSearch        = "search"
	ParamPage          = "page"
	ParamPerPage       = "per-page"
	ParamName          = "name"
	ParamVersion       = "version"
	ParamDistributor   = "distributor"
	ParamBranch        = "branch"
	ParamTarget        = "target"
	ParamConfiguration = "configuration"
	// ParamBinary asks for the artifact inline in the version document.
	ParamBinary = "binary"
)

// CatalogPage is the response of PathCatalog.
type CatalogPage struct {
	Items   []protocol.CatalogItem `json:"items"`
	HasMore bool                   `json:"has-more"`
}

// LoginRequest is the body of PathLogin.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for later requests.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires-at,omitzero"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Query is a version lookup as sent to PathResolve and PathVersions.
type Query struct {
	Library       protocol.PlcLibrary
	Branch        string
	Target        string
	Configuration string
	Binary        bool
}

// Values encodes q as query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set(ParamName, q.Library.Name)
	set(ParamVersion, q.Library.Version)
	set(ParamDistributor, q.Library.DistributorName)
	set(ParamBranch, q.Branch)
	set(ParamTarget, q.Target)
	set(ParamConfiguration, q.Configuration)
	if q.Binary {
		v.Set(ParamBinary, "true")
	}
	return v
}

// ParseQuery decodes query parameters written by [Query.Values].
func ParseQuery(v url.Values) Query {
	return Query{
		Library: protocol.PlcLibrary{
			Name:            v.Get(ParamName),
			Version:         v.Get(ParamVersion),
			DistributorName: v.Get(ParamDistributor),
		},
		Branch:        v.Get(ParamBranch),
		Target:        v.Get(ParamTarget),
		Configuration: v.Get(ParamConfiguration),
		Binary:        strings.EqualFold(v.Get(ParamBinary), "true"),
	}
}
