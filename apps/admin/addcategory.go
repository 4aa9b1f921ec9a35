package main

import (
	"context"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
)

// addCategory creates a category; owned by the shared system owner unless an
// owner id is given.
func (cli *commandLine) addCategory(name, ownerID string) error {
	if ownerID == "" {
		ownerID = category.SystemOwnerID
	}
	nc := category.NewCategory{Name: core.CleanString(name)}
	_, err := cli.catSvc.Create(context.Background(), ownerID, nc)
	return err
}
