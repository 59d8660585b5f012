// Package errors provides structured, actionable errors for atomctl.
//
// Every error carries a code (e.g. "A101") registered with a category,
// a short message and a longer explanation. Errors found in YAML files
// also carry the file location, and Format prints the surrounding lines:
//
//	err := errors.New("A103").
//	    WithLocation("counter.yaml", 7, 11).
//	    WithSuggestion(`Declare "count" under atoms before using it in deps`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR A103: Unknown dependency
//	//
//	//   counter.yaml:7:11
//	//
//	//        5 │   - name: doubled
//	//        6 │     expr: count * 2
//	//   →    7 │     deps: [count]
//	//          │           ^
//	//
//	//   Hint: Declare "count" under atoms before using it in deps
//
// # Categories
//
//   - config: atomctl.yaml could not be loaded or is invalid
//   - scenario: a scenario file could not be parsed, built or run
//   - snapshot: a snapshot could not be saved or restored
//   - inspect: the inspector rejected a request
//   - cli: command line misuse
package errors
