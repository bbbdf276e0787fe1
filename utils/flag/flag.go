/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
)

var (
	IsDevelopment bool
	ServiceName   string
	ByPassAuth    bool
)

// Definitions only; flag.Parse() belongs to main. Parsing at init time
// would race the testing package's own flag registration and break every
// test binary importing this package.
func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "service name reported in logs and traces")
	flag.BoolVar(&ByPassAuth, "no_auth", false, "skip viewer resolution and treat every request as anonymous")
}
