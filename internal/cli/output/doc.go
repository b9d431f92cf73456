// Package output renders filekv-cli results as a table, JSON or YAML.
package output
