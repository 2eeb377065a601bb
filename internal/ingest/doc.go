// Package ingest decodes availability windows, weekly templates and sessions
// from JSON documents.
//
// Field names are matched without regard to case or underscores, so both
// "tutorId" and "tutor_id" are accepted. A malformed record is reported on its
// own and does not stop the rest of the document from decoding.
package ingest
