// Command ci runs vet and the test suite inside a golang container.
package main

import (
	"context"
	"fmt"
	"os"

	"dagger.io/dagger"
)

const goImage = "golang:1.24-bookworm"

func main() {
	ctx := context.Background()
	if err := Build(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Build mounts the repository, downloads modules, then runs go vet and
// go test. Each step must succeed before the next starts.
func Build(ctx context.Context) error {
	client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer client.Close()

	repo := client.Host().Directory(".", dagger.HostDirectoryOpts{
		Exclude: []string{"_examples/", "ci/"},
	})

	base := client.Container().
		From(goImage).
		WithMountedCache("/go/pkg/mod", client.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", client.CacheVolume("go-build")).
		WithEnvVariable("CGO_ENABLED", "1").
		WithDirectory("/src", repo).
		WithWorkdir("/src").
		WithExec([]string{"go", "mod", "download"})

	if _, err := base.Stdout(ctx); err != nil {
		return err
	}

	fmt.Println("Running go vet")
	vet := base.WithExec([]string{"go", "vet", "./..."})
	if _, err := vet.Stdout(ctx); err != nil {
		return err
	}

	fmt.Println("Running go test")
	test := vet.WithExec([]string{"go", "test", "-race", "./..."})
	out, err := test.Stdout(ctx)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
