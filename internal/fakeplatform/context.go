package fakeplatform

import (
	"context"
	"strconv"
)

func withTeam(ctx context.Context, team int) context.Context {
	return context.WithValue(ctx, teamKey{}, team)
}

func teamFrom(ctx context.Context) int {
	team, _ := ctx.Value(teamKey{}).(int)
	return team
}

func itoa(n int) string { return strconv.Itoa(n) }
