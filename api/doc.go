// Package api defines the wire types of the councilflow HTTP API and the
// conversions between pipeline results and their serialized forms.
package api
