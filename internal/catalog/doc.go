// Package catalog defines the core domain model shared by the crawl
// orchestration engine: the canonical record schema, the source adapter
// contract, the persistence interfaces, and the error taxonomy.
package catalog
