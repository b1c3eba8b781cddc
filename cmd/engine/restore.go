package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/tasks"
)

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Copy datasets from the object store back into Redis",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "s3-key", Aliases: []string{"s"}, Usage: "Single object key to restore"},
			&cli.StringFlag{Name: "prefix", Usage: "Restore every object under this prefix"},
			&cli.StringFlag{Name: "redis-key", Aliases: []string{"r"}, Usage: "Target key for --s3-key; defaults to the object key"},
			&cli.StringFlag{Name: "job-id", Usage: "Task id; random when empty"},
		},
		Action: restoreAction,
	}
}

func restoreAction(ctx context.Context, cmd *cli.Command) error {
	s, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	payload := tasks.RestorePayload{
		JobID:    cmd.String("job-id"),
		S3Key:    cmd.String("s3-key"),
		Prefix:   cmd.String("prefix"),
		RedisKey: cmd.String("redis-key"),
	}
	id, err := s.Dispatcher.Dispatch(ctx, tasks.TypePublishFromObject, payload)
	if err != nil {
		return err
	}
	fmt.Printf("task %s id=%s\n", tasks.TypePublishFromObject, id)
	return nil
}
