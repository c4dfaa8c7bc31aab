// Package connectors contains the source connector implementations and
// helpers shared between them.
//
// Each connector variant lives in its own sub-package (sitemap, records,
// wiki) and implements the driven.Connector capability contract. The
// ingestion pipeline never depends on a concrete variant.
package connectors
