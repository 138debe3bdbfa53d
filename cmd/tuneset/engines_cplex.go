//go:build cplex

package main

import _ "github.com/GoSim-25-26J-441/tuneset/internal/solver/cplex"
