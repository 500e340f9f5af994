// Package drive provides a thin client over the Google Drive API for the
// wrapped drive tools.
package drive
