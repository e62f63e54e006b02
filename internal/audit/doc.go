// Package audit records automation activity in the audit_logs table.
//
// The history recorder writes one row per fired device trigger and per
// executed device action; entity registry changes are logged too. Rows are
// read back through the /api/v1/audit endpoint, newest first.
package audit
