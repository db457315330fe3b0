package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestFull(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.True(t, strings.HasPrefix(Full(""), "alarm-monitor version: "+Short()))
	require.True(t, strings.HasPrefix(Full(Project), "alarm-monitor version: "))
	require.True(t, strings.HasPrefix(Full("alarm-ctl"), "alarm-ctl (alarm-monitor) version: "))
	require.Contains(t, Full("alarm-ctl"), "commit: "+Commit)
}

func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "alarm-ctl"}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Full("alarm-ctl")+"\n", out.String())

	sub, _, err := root.Find([]string{"version"})
	require.NoError(t, err)
	require.Contains(t, sub.Long, "alarm-monitor suite")
}
