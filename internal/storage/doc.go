// Package storage provides a minimal persistence layer for the daemon.
//
// It currently holds the audit log: timer starts/cancels/expiries and manual
// power flips, replacing the flat timer log file of earlier deployments.
package storage
