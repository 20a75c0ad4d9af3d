// Package errors provides coded, actionable errors for the composer CLI.
//
// Each error has a code (e.g. "E101") registered with a category, a short
// message and a longer explanation. Call sites add a detail line and a
// suggestion:
//
//	return errors.New("E101").
//	    WithDetail("Failed to parse compose.json: " + err.Error()).
//	    WithSuggestion("Check that compose.json is valid JSON")
//
// PrintError renders the error for the terminal:
//
//	ERROR E101: Invalid configuration file
//
//	  Failed to parse compose.json: unexpected end of JSON input
//
//	  Hint: Check that compose.json is valid JSON
package errors
