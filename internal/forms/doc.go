// Package forms provides a thin client over the Google Forms API for the
// wrapped forms tools. Form listing goes through Drive because the Forms
// API has no list endpoint.
package forms
