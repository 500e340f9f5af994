// Package gmail provides a thin client over the Gmail API for the wrapped
// mail tools.
package gmail
