package catalog_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/plcpack/pkg/catalog"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/protocol/protocoltest"
)

func ExampleFederator_Search() {
	primary := protocoltest.New("primary")
	primary.Items = protocoltest.Items("Tc3_", 3)
	mirror := protocoltest.New("mirror")
	mirror.Items = protocoltest.Items("Tc3_", 4)

	f := catalog.New([]protocol.Server{primary, mirror}, nil)
	page, _ := f.Search(context.Background(), "tc3", 2, 10)
	for _, it := range page {
		fmt.Println(it.Name, "from", it.Server.Name())
	}
	rest, _ := f.Search(context.Background(), "tc3", 0, 10)
	for _, it := range rest {
		fmt.Println(it.Name, "from", it.Server.Name())
	}
	// Output:
	// Tc3_1 from primary
	// Tc3_2 from primary
	// Tc3_3 from primary
	// Tc3_4 from mirror
}
