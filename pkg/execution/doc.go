// Package execution holds the stateless page-at-a-time operators (Filter,
// Project). Blocking and spilling operators live in the subpackages:
// extsort, join, setops and query.
package execution
