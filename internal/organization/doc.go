// Package organization implements the organization research pipeline:
// fetch the company site, extract a profile, score it, and upsert the
// organization record. A careers page found along the way is handed to
// source discovery.
package organization
