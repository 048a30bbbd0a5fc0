// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The farmplan command builds and solves a small crop-allocation model: two
// crops compete for land, budget, and labour under a delivery contract. It
// prints the solution report with dual prices and slacks, and can export the
// model in LP format.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/golang/glog"
	"github.com/optgo/linopt/lpmodel"
)

var lpOut = flag.String("lp_out", "", "if set, also write the model in LP format to this file")

func farmPlan() error {
	model := lpmodel.NewBuilder()

	// Hectares planted of each crop.
	x1, err := model.NewVar("x1", 0, lpmodel.Inf())
	if err != nil {
		return err
	}
	x2, err := model.NewVar("x2", 0, lpmodel.Inf())
	if err != nil {
		return err
	}

	// Profit per hectare.
	profit := lpmodel.NewLinearExpr().AddTerm(x1, 1000).AddTerm(x2, 500)
	if err := model.Maximize(profit); err != nil {
		return err
	}

	constraints := []struct {
		name string
		expr lpmodel.LinearArgument
		op   lpmodel.Op
		rhs  float64
	}{
		{"land", lpmodel.NewLinearExpr().AddTerm(x1, 4).AddTerm(x2, 1.5), lpmodel.LessOrEqual, 24},
		{"budget", lpmodel.NewLinearExpr().AddTerm(x1, 240).AddTerm(x2, 30), lpmodel.LessOrEqual, 1200},
		{"labour", lpmodel.NewLinearExpr().AddTerm(x1, 20).AddTerm(x2, 20), lpmodel.LessOrEqual, 200},
		{"contract", x1, lpmodel.GreaterOrEqual, 2},
	}
	for _, c := range constraints {
		if _, err := model.AddConstraint(c.name, c.expr, c.op, c.rhs); err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}

	if *lpOut != "" {
		if err := model.ExportLP(*lpOut); err != nil {
			return fmt.Errorf("failed to export the model: %w", err)
		}
	}

	sol, err := model.Solve()
	if err != nil {
		return fmt.Errorf("failed to solve the model: %w", err)
	}
	return sol.WriteReport(os.Stdout)
}

func main() {
	flag.Parse()
	if err := farmPlan(); err != nil {
		log.Exitf("farmPlan returned with error: %v", err)
	}
}
