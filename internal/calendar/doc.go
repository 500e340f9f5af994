// Package calendar provides a thin client over the Google Calendar API for
// the wrapped calendar tools.
package calendar
