package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/KiruiElisha/esg-compliance/api/v1"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

func newDashboardCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dashboard",
		Short:   "Fetch the dashboard from a running server",
		Example: "  esgctl dashboard --addr localhost:50051 --company Acme --from 2025-01-01 -o table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, v)
		},
	}

	cmd.Flags().String("addr", "localhost:50051", "Server gRPC address")
	cmd.Flags().Duration("timeout", 10*time.Second, "Request timeout")
	cmd.Flags().String("company", "", "Restrict to one company")
	cmd.Flags().String("from", "", "Earliest entry date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Latest entry date (YYYY-MM-DD)")
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	_ = v.BindPFlag("company", cmd.Flags().Lookup("company"))

	return cmd
}

func runDashboard(cmd *cobra.Command, v *viper.Viper) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	req, err := structpb.NewStruct(map[string]any{
		"company":   v.GetString("company"),
		"from_date": from,
		"to_date":   to,
	})
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	conn, err := grpc.NewClient(v.GetString("addr"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", v.GetString("addr"), err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
	defer cancel()

	resp, err := pb.NewESGOverviewClient(conn).GetDashboard(ctx, req)
	if err != nil {
		st := status.Convert(err)
		return fmt.Errorf("get dashboard: %s: %s", st.Code(), st.Message())
	}

	d, err := decodeDashboard(resp)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), v.GetString("output"), d, func() string {
		return renderDashboardTable(d)
	})
}

func decodeDashboard(resp *structpb.Struct) (service.Dashboard, error) {
	raw, err := json.Marshal(resp.AsMap())
	if err != nil {
		return service.Dashboard{}, fmt.Errorf("decode dashboard: %w", err)
	}
	var d service.Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return service.Dashboard{}, fmt.Errorf("decode dashboard: %w", err)
	}
	return d, nil
}
