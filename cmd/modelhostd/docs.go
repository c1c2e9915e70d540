package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           modelhost API
// @version         1.0
// @description     HTTP API for local model lifecycle management: catalog, cache reconciliation, loading and generation.
//
// @contact.name   modelhost maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
